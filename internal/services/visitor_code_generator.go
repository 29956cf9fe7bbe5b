package services

import (
	"crypto/rand"
	"math/big"
	"strings"

	apperrors "estategate/pkg/errors"
)

const (
	// VisitorCodeLength 访客码长度
	VisitorCodeLength = 6
	// visitorCodeAlphabet 大写字母与数字，共36个字符
	visitorCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var alphabetSize = big.NewInt(int64(len(visitorCodeAlphabet)))

// CodeGenerator 生成候选访客码
type CodeGenerator func() (string, error)

// GenerateVisitorCode 从字母表中均匀抽取6个字符
func GenerateVisitorCode() (string, error) {
	buf := make([]byte, VisitorCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		buf[i] = visitorCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// NormalizeVisitorCode 去除空白并转为大写，格式不合法时返回校验错误
func NormalizeVisitorCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != VisitorCodeLength {
		return "", apperrors.Validation("访客码必须为%d位", VisitorCodeLength)
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(visitorCodeAlphabet, code[i]) < 0 {
			return "", apperrors.Validation("访客码只能包含字母和数字")
		}
	}
	return code, nil
}
