// Package apperr defines the tagged error kinds the HTTP layer maps to
// status codes. Engines and the repository return these instead of raw
// errors so the boundary mapping stays in one place.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is one of the error taxonomy entries from the error handling design.
type Kind int

const (
	Validation Kind = iota
	NotFound
	Conflict
	TooLarge
	Unavailable
	InternalKind
)

// Error is a Kind plus a caller-facing message. For Internal, Message is a
// generic string; the concrete cause is logged, never returned to the
// client.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Status maps the Kind to the HTTP status code from the error handling
// design table.
func (e *Error) Status() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case TooLarge:
		return http.StatusRequestEntityTooLarge
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NewValidation(message string) *Error { return New(Validation, message) }
func NewNotFound(message string) *Error   { return New(NotFound, message) }
func NewConflict(message string) *Error   { return New(Conflict, message) }
func NewTooLarge(message string) *Error   { return New(TooLarge, message) }
func NewUnavailable(message string) *Error { return New(Unavailable, message) }

// Internal wraps a store/serialization error behind the generic message the
// design requires; cause is preserved for logging only.
func Internal(cause error) *Error {
	return &Error{Kind: InternalKind, Message: "internal error", cause: cause}
}

// As extracts an *Error from err, returning it if err is or wraps one,
// or a wrapped Internal error otherwise.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
