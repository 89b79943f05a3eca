// Package apperr carries an HTTP status alongside an error so services can
// decide the response code and the error middleware can render it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the application error type.  Message is safe to show to
// clients; Err is the wrapped cause and is only logged.
type Error struct {
	Status  int
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

func NotFound(msg string) *Error     { return New(http.StatusNotFound, msg) }
func BadRequest(msg string) *Error   { return New(http.StatusBadRequest, msg) }
func Conflict(msg string) *Error     { return New(http.StatusConflict, msg) }
func Forbidden(msg string) *Error    { return New(http.StatusForbidden, msg) }
func Unauthorized(msg string) *Error { return New(http.StatusUnauthorized, msg) }

// Internal hides err behind a generic message.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}

// Validation builds a 400 with per-field messages.
func Validation(details map[string]string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "validation failed", Details: details}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 when it is not an *Error.
func StatusOf(err error) int {
	if ae, ok := As(err); ok {
		return ae.Status
	}
	return http.StatusInternalServerError
}
