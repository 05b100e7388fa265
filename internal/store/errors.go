package store

import (
	"fmt"
	"net/http"
)

// Error is a persistence error carrying the HTTP status it maps to.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so refined errors still satisfy
// errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPCode returns the HTTP status for this error.
func (e *Error) HTTPCode() int { return e.Code }

// GetStatus is HTTPCode under the name huma looks for.
func (e *Error) GetStatus() int { return e.Code }

// WithMessage returns a copy with msg as the message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound      = &Error{Code: http.StatusNotFound, Message: "resource not found"}
	ErrAlreadyExists = &Error{Code: http.StatusConflict, Message: "resource already exists"}
	ErrInvalidInput  = &Error{Code: http.StatusBadRequest, Message: "invalid input"}
)

// Entity specific errors.
var (
	ErrUserNotFound      = ErrNotFound.WithMessage("user not found")
	ErrEmailExists       = ErrAlreadyExists.WithMessage("email already registered")
	ErrSessionNotFound   = ErrNotFound.WithMessage("session not found")
	ErrSessionExpired    = ErrNotFound.WithMessage("session expired")
	ErrBookNotFound      = ErrNotFound.WithMessage("book not found")
	ErrDuplicateBook     = ErrAlreadyExists.WithMessage("a book with the same content already exists")
	ErrProgressNotFound  = ErrNotFound.WithMessage("reading progress not found")
	ErrInstanceNotFound  = ErrNotFound.WithMessage("server instance not found")
	ErrPreferencesAbsent = ErrNotFound.WithMessage("reader preferences not found")
)
