package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/wfunc/highscore-api/internal/errors"
	"github.com/wfunc/highscore-api/internal/logger"
	"go.uber.org/zap"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// requestIDKey 请求ID在上下文中的键
const requestIDKey = "requestID"

// RequestID 为每个请求分配ID，沿用客户端传入的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 获取当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger 访问日志
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.LogRequest(log, c.Request.Method, path, c.Writer.Status(),
			time.Since(start), c.ClientIP(), GetRequestID(c))
	}
}

// Recovery 捕获panic并返回通用的服务端错误
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.LogPanic(log.With(zap.String("request_id", GetRequestID(c))), recovered, debug.Stack())
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.New(apperrors.ErrUnknown).ToResponse())
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler 把处理链中记录的错误统一转换为响应
//
// 客户端只看到错误类别和通用消息；服务端错误连同调用栈完整写入日志。
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
		}

		status := appErr.HTTPStatus()
		fields := []zap.Field{
			zap.Int("code", int(appErr.Code)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", GetRequestID(c)),
		}
		if status >= http.StatusInternalServerError {
			fields = append(fields, zap.String("stack", appErr.GetStack()))
			logger.LogError(log, err, "request failed", fields...)
		} else {
			log.Debug("request rejected", append(fields, zap.String("details", appErr.Details))...)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, appErr.ToResponse())
	}
}
