// Package errs defines the HTTP-facing error taxonomy and its JSON envelope.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status attached. Handlers return it and a
// single writer renders it as {"error": ..., "details": ...}.
type Error struct {
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e carrying a client-visible detail string.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Envelope is the response body for every error.
type Envelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, message)
}

// Internal wraps an unexpected failure. The cause is never rendered to clients
// unless the writer runs in development mode.
func Internal(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Err: err}
}

// As extracts an *Error from err. Anything else is reported as a generic 500.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal server error", err)
}

// Write renders err as the error envelope. When expose is set, the wrapped
// cause of a 500 is included as details.
func Write(w http.ResponseWriter, err error, expose bool) {
	e := As(err)
	body := Envelope{Error: e.Message, Details: e.Details}
	if expose && e.Status >= http.StatusInternalServerError && e.Err != nil && body.Details == "" {
		body.Details = e.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(body)
}
