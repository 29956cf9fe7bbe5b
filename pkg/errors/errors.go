package errors

import (
	stderrors "errors"
	"fmt"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
	CodeCreated = 201
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam  = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeUnprocessable = 422
	CodeServerError   = 500
)

// ========== 业务错误 ==========

// Kind 业务错误类别
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindExpired    Kind = "expired"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
)

// AppError 可直接返回给调用方的业务错误
type AppError struct {
	Kind    Kind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// Code 业务错误对应的HTTP状态码
func (e *AppError) Code() int {
	switch e.Kind {
	case KindValidation:
		return CodeUnprocessable
	case KindNotFound:
		return CodeNotFound
	case KindExpired, KindConflict:
		return CodeConflict
	case KindForbidden:
		return CodeForbidden
	default:
		return CodeServerError
	}
}

func newError(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *AppError {
	return newError(KindNotFound, format, args...)
}

func Expired(format string, args ...interface{}) *AppError {
	return newError(KindExpired, format, args...)
}

func Conflict(format string, args ...interface{}) *AppError {
	return newError(KindConflict, format, args...)
}

func Forbidden(format string, args ...interface{}) *AppError {
	return newError(KindForbidden, format, args...)
}

// As 从错误链中取出 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind 判断错误链中是否包含指定类别的 AppError
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
