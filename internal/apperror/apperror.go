// Package apperror defines the errors that reach API clients. Each carries the
// HTTP status it is rendered with.
package apperror

import (
	"errors"
	"net/http"
	"strings"
)

// Message is one entry of an error response.
type Message struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error is a client-facing failure.
type Error struct {
	Status   int
	Messages []Message
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.Field != "" {
			parts = append(parts, m.Field+": "+m.Message)
			continue
		}
		parts = append(parts, m.Message)
	}
	return http.StatusText(e.Status) + ": " + strings.Join(parts, "; ")
}

func newError(status int, msg, fallback string) *Error {
	if msg == "" {
		msg = fallback
	}
	return &Error{Status: status, Messages: []Message{{Message: msg}}}
}

// Unauthorized is a missing, invalid or expired credential.
func Unauthorized(msg string) *Error {
	return newError(http.StatusUnauthorized, msg, "Unauthorized")
}

// Forbidden is a role or ownership mismatch.
func Forbidden(msg string) *Error {
	return newError(http.StatusForbidden, msg, "Forbidden")
}

// BadRequest covers credential mismatches and duplicate registrations.
func BadRequest(msg string) *Error {
	return newError(http.StatusBadRequest, msg, "Bad Request")
}

// NotFound reports a missing resource.
func NotFound(msg string) *Error {
	return newError(http.StatusNotFound, msg, "Not Found")
}

// TooManyRequests reports an exhausted request budget.
func TooManyRequests(msg string) *Error {
	return newError(http.StatusTooManyRequests, msg, "Too Many Requests")
}

// Validation reports one entry per invalid field.
func Validation(msgs ...Message) *Error {
	if len(msgs) == 0 {
		return BadRequest("")
	}
	return &Error{Status: http.StatusBadRequest, Messages: msgs}
}

// Internal hides the cause behind a generic message.
func Internal() *Error {
	return newError(http.StatusInternalServerError, "", "Internal Server Error")
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
