package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError 业务错误，handler 层据 Code 映射 HTTP 状态码
type AppError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"` // 校验失败的字段
	Cause   error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New 创建业务错误
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Conflict(msg string) error {
	return New(CodeConflict, msg)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// Validation 字段校验失败，fields 为 字段->原因
func Validation(msg string, fields map[string]string) error {
	return &AppError{Code: CodeValidationFailed, Message: msg, Fields: fields}
}

// Field 单字段校验失败
func Field(field, reason string) error {
	return Validation(reason, map[string]string{field: reason})
}

// As 提取 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf 返回错误码，非 AppError 视为 INTERNAL
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// Is 判断错误是否为指定错误码
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
