package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrValidationFailed ErrorCode = 1003
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrPayloadTooLarge  ErrorCode = 1007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000 // 传输层故障：套接字缺失、连接超时
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDataIntegrity   ErrorCode = 5006 // 约束冲突

	// 配置错误 (6000-6999)
	ErrConfigLoad ErrorCode = 6000

	// 安全错误 (7000-7999)
	ErrRateLimitExceeded ErrorCode = 7004
)

// 错误码消息映射（面向客户端）
var errorMessages = map[ErrorCode]string{
	ErrUnknown:           "An unexpected error occurred",
	ErrInvalidParam:      "Invalid parameter",
	ErrNotFound:          "Resource not found",
	ErrValidationFailed:  "Validation failed",
	ErrTimeout:           "Operation timed out",
	ErrCanceled:          "Operation canceled",
	ErrPayloadTooLarge:   "Request body too large",
	ErrDatabaseConnect:   "A database error occurred",
	ErrDatabaseQuery:     "A database error occurred",
	ErrDataIntegrity:     "A database error occurred",
	ErrConfigLoad:        "Failed to load configuration",
	ErrRateLimitExceeded: "Rate limit exceeded. Please try again later.",
}

// AppError 应用错误结构
type AppError struct {
	Code       ErrorCode    `json:"code"`                 // 错误码
	Message    string       `json:"message"`              // 错误消息
	Details    string       `json:"details,omitempty"`    // 详细信息
	Violations []string     `json:"violations,omitempty"` // 校验失败明细
	Cause      error        `json:"-"`                    // 原始错误
	Stack      []StackFrame `json:"-"`                    // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithMessage 覆盖客户端可见消息
func (e *AppError) WithMessage(message string) *AppError {
	e.Message = message
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Validation 创建校验失败错误，所有违规项一并返回
func Validation(violations []string) *AppError {
	err := New(ErrValidationFailed, strings.Join(violations, "; "))
	err.Violations = violations
	return err
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr = New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// As 从错误链中取出AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := As(err); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()

		// 跳过runtime和本包的调用
		if !strings.Contains(frame.Function, "runtime.") &&
			!strings.Contains(frame.Function, "highscore-api/internal/errors") {
			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})
		}

		// 只保留前10个栈帧
		if !more || len(e.Stack) >= 10 {
			break
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrValidationFailed:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Kind 返回响应体中的错误类别
func (e *AppError) Kind() string {
	switch {
	case e.Code == ErrValidationFailed:
		return "Validation failed"
	case e.IsDatabase():
		return "Database Error"
	case e.HTTPStatus() == http.StatusInternalServerError:
		return "Server Error"
	default:
		return http.StatusText(e.HTTPStatus())
	}
}

// IsDatabase 是否为数据库错误
func (e *AppError) IsDatabase() bool {
	return e.Code >= 5000 && e.Code <= 5999
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ValidationResponse 校验失败响应结构
type ValidationResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// ToResponse 转换为客户端响应体
//
// 服务端错误只返回通用消息，完整信息由调用方写入日志。
func (e *AppError) ToResponse() interface{} {
	if e.Code == ErrValidationFailed {
		details := e.Violations
		if details == nil {
			details = []string{}
		}
		return ValidationResponse{Error: e.Kind(), Details: details}
	}

	message := e.Message
	switch {
	case e.IsDatabase():
		message = errorMessages[ErrDatabaseQuery]
	case e.HTTPStatus() == http.StatusInternalServerError:
		message = errorMessages[ErrUnknown]
	}

	return ErrorResponse{Error: e.Kind(), Message: message}
}
