package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a stable error code for programmatic handling.
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeInvalid      Code = "invalid"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
	CodeDependency   Code = "dependency"
	CodeDeadline     Code = "deadline_exceeded"
)

const metaRetryable = "retryable"

// AppError is a structured error type that carries a code, a client-safe message, and optional metadata.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// WithRetryable records whether the caller may retry the failed operation.
func (e *AppError) WithRetryable(retry bool) *AppError {
	return e.WithMeta(metaRetryable, retry)
}

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

func Invalid(message string) *AppError      { return New(CodeInvalid, message) }
func Conflict(message string) *AppError     { return New(CodeConflict, message) }
func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }
func NotFound(message string) *AppError     { return New(CodeNotFound, message) }

// Dependency wraps a failure of an external process or service.
func Dependency(err error, message string, retryable bool) *AppError {
	return Wrap(err, CodeDependency, message).WithRetryable(retryable)
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Retryable reports the retry hint of err and whether one was recorded.
func Retryable(err error) (retry bool, known bool) {
	ae, ok := As(err)
	if !ok || ae.Meta == nil {
		return false, false
	}
	v, ok := ae.Meta[metaRetryable].(bool)
	return v, ok
}

// HTTPStatus maps an error code to the status the API answers with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalid, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDependency:
		return http.StatusBadGateway
	case CodeDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
