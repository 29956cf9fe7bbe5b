package middleware

import (
	"runtime/debug"

	"estategate/pkg/logger"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler 捕获panic，返回统一的500响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"request_id": c.GetString(RequestIDKey),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
					"stack":      string(debug.Stack()),
				}).Errorf("Panic recovered: %v", err)

				if !c.Writer.Written() {
					response.ServerError(c, "服务器内部错误")
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
