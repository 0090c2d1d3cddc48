// Package gwerrors defines the gateway's typed errors and their mapping to
// HTTP status codes.
package gwerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of gateway error.
type Code string

const (
	CodeNoBackends           Code = "NO_BACKENDS_AVAILABLE"
	CodeBackendNotFound      Code = "BACKEND_NOT_FOUND"
	CodeBackendUnavailable   Code = "BACKEND_UNAVAILABLE"
	CodeBackendUnreachable   Code = "BACKEND_UNREACHABLE"
	CodeDirectoryUnavailable Code = "DIRECTORY_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is a gateway error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New creates an error with a code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with a code and an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ErrNoBackends is returned when selection runs against an empty healthy set.
var ErrNoBackends = New(CodeNoBackends, "no healthy backends available")

// HTTPStatus maps a gateway error to the status code the proxy layer should
// answer with.
func HTTPStatus(err error) int {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		return http.StatusInternalServerError
	}
	switch gwErr.Code {
	case CodeNoBackends, CodeBackendUnavailable, CodeDirectoryUnavailable:
		return http.StatusServiceUnavailable
	case CodeBackendNotFound:
		return http.StatusNotFound
	case CodeBackendUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
