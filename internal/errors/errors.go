// Package errors provides standardized domain errors with codes for the JamQueue client.
//
// Usage:
//
//	// In the mutation client - return typed errors
//	if resp.StatusCode != http.StatusOK {
//	    return errors.FromHTTPStatus(resp.StatusCode, envelope.Error)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    // entry vanished server-side; nothing to revert
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the client.
const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeValidation     Code = "VALIDATION"
	CodeConflict       Code = "CONFLICT"
	CodeMutationFailed Code = "MUTATION_FAILED"
	CodeTransport      Code = "TRANSPORT"
	CodeInternal       Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation     = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict       = &Error{Code: CodeConflict, Message: "conflict"}
	ErrMutationFailed = &Error{Code: CodeMutationFailed, Message: "mutation failed"}
	ErrTransport      = &Error{Code: CodeTransport, Message: "transport error"}
	ErrInternal       = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// MutationFailed creates a mutation failure error.
func MutationFailed(msg string) *Error {
	return &Error{Code: CodeMutationFailed, Message: msg}
}

// MutationFailedf creates a mutation failure error with formatted message.
func MutationFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeMutationFailed, Message: fmt.Sprintf(format, args...)}
}

// Transport creates a transport error.
func Transport(msg string) *Error {
	return &Error{Code: CodeTransport, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// FromHTTPStatus maps an HTTP status code from the server to a domain error.
// The message comes from the server's error envelope when available.
func FromHTTPStatus(status int, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return NotFound(msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Validation(msg)
	case http.StatusConflict:
		return Conflict(msg)
	default:
		if status >= 500 {
			return Internal(msg)
		}
		return MutationFailed(msg)
	}
}
