// Package domainerrors provides coded errors for expected domain conditions.
//
// Services return these instead of raw errors so the HTTP boundary can
// translate them into status codes exactly once. Stores stay on sentinel
// errors (pkg/platform/sentinel); services wrap those into coded errors with
// messages safe to show callers.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for boundary translation.
type Code string

const (
	// CodeValidation marks malformed or rule-breaking input (HTTP 400).
	CodeValidation Code = "validation_error"
	// CodeUnauthorized marks a missing or unverifiable credential (HTTP 401).
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a role mismatch or a closed gate such as a locked
	// or expired poll (HTTP 403).
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks an unresolved poll or option id (HTTP 404).
	CodeNotFound Code = "not_found"
	// CodeConflict marks vote-state conflicts such as a duplicate vote (HTTP 409).
	CodeConflict Code = "conflict"
	// CodeUnavailable marks transient persistence failures; callers may retry
	// with backoff (HTTP 500).
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures surfaced opaquely (HTTP 500).
	CodeInternal Code = "internal_error"
)

// Error carries a code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and caller-safe message to an underlying error. The
// cause stays reachable through errors.Is/As but is never rendered to callers.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain layer.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Non-domain errors get
// an opaque message so internals never leak to the response envelope.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}
