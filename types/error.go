package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request / transport error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Interview error codes
const (
	// ErrSessionNotFound 会话 ID 没有对应的检查点
	ErrSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrModelCallFailure 模型调用失败，本轮中止，检查点保持上一个有效状态
	ErrModelCallFailure ErrorCode = "MODEL_CALL_FAILURE"
	// ErrScoreParseFailure 评分输出无法解析，本地恢复为零分
	ErrScoreParseFailure ErrorCode = "SCORE_PARSE_FAILURE"
	// ErrPersistenceFailure 记录写入失败，仅记录日志
	ErrPersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	// ErrSessionBusy 同一会话的检查点被另一个执行者抢先写入
	ErrSessionBusy ErrorCode = "SESSION_BUSY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError unwraps err looking for a *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any error in err's chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewSessionNotFoundError 构造会话不存在错误
func NewSessionNotFoundError(sessionID string) *Error {
	return NewError(ErrSessionNotFound, fmt.Sprintf("session %q not found", sessionID)).
		WithHTTPStatus(http.StatusNotFound)
}

// NewModelCallError wraps a failed model invocation.
func NewModelCallError(step string, cause error) *Error {
	return NewError(ErrModelCallFailure, fmt.Sprintf("model call failed in %s", step)).
		WithCause(cause).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true)
}

// NewInvalidRequestError builds a 400 error.
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewPersistenceError wraps a failed record write.
func NewPersistenceError(op string, cause error) *Error {
	return NewError(ErrPersistenceFailure, fmt.Sprintf("persist %s", op)).WithCause(cause)
}

// NewSessionBusyError 会话正被另一个请求推进，稍后重试即可
func NewSessionBusyError(sessionID string, cause error) *Error {
	return NewError(ErrSessionBusy, fmt.Sprintf("session %q is being updated by another request", sessionID)).
		WithCause(cause).
		WithHTTPStatus(http.StatusConflict).
		WithRetryable(true)
}
