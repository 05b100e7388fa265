// Package errors provides coded domain errors for the Booksy API.
//
// Services return these errors; the API layer maps the code to an HTTP status
// and renders the message in the response envelope.
//
//	if book == nil {
//	    return errors.NotFound("book not found")
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Code == errors.CodeValidation {
//	    // ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-exported so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code is a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeAlreadyConfigured  Code = "ALREADY_CONFIGURED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeUnsupportedMedia   Code = "UNSUPPORTED_MEDIA"
	CodeRateLimited        Code = "RATE_LIMITED"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeAlreadyConfigured:
		return http.StatusConflict
	case CodeUnauthorized, CodeInvalidCredentials, CodeTokenExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error carrying a code, a message and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the HTTP status for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus lets huma pick the response status straight from a returned
// domain error.
func (e *Error) GetStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
	ErrAlreadyConfigured  = &Error{Code: CodeAlreadyConfigured, Message: "already configured"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrTokenExpired       = &Error{Code: CodeTokenExpired, Message: "token expired"}
	ErrUnsupportedMedia   = &Error{Code: CodeUnsupportedMedia, Message: "unsupported media type"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "rate limited"}
)

func newf(code Code, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Message: msg}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error { return newf(CodeNotFound, format, args...) }

// AlreadyExists creates an already exists error.
func AlreadyExists(format string, args ...any) *Error {
	return newf(CodeAlreadyExists, format, args...)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(format string, args ...any) *Error {
	return newf(CodeUnauthorized, format, args...)
}

// Forbidden creates a forbidden error.
func Forbidden(format string, args ...any) *Error { return newf(CodeForbidden, format, args...) }

// Validation creates a validation error.
func Validation(format string, args ...any) *Error { return newf(CodeValidation, format, args...) }

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error { return newf(CodeConflict, format, args...) }

// Internal creates an internal error.
func Internal(format string, args ...any) *Error { return newf(CodeInternal, format, args...) }

// Wrap wraps err as an internal error with a message.
func Wrap(err error, format string, args ...any) *Error {
	return newf(CodeInternal, format, args...).WithCause(err)
}

// AlreadyConfigured is returned when one-time setup has already run.
func AlreadyConfigured(format string, args ...any) *Error {
	return newf(CodeAlreadyConfigured, format, args...)
}

// InvalidCredentials is returned on failed login.
func InvalidCredentials(format string, args ...any) *Error {
	return newf(CodeInvalidCredentials, format, args...)
}

// TokenExpired is returned when a token is past its expiry.
func TokenExpired(format string, args ...any) *Error {
	return newf(CodeTokenExpired, format, args...)
}

// UnsupportedMedia is returned for uploads in a format the server cannot read.
func UnsupportedMedia(format string, args ...any) *Error {
	return newf(CodeUnsupportedMedia, format, args...)
}

// RateLimited is returned when a caller exceeds its request budget.
func RateLimited(format string, args ...any) *Error {
	return newf(CodeRateLimited, format, args...)
}
