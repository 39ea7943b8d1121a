// Package apperror defines the closed set of error kinds the application can
// produce, and a wrapper type carrying a human-readable message alongside them.
//
// WHY SENTINEL ERRORS?
// Every failure that crosses a layer boundary is tagged with exactly one of
// these sentinels via errors.Is. The HTTP layer (handler/response.go) is the
// single place that maps a sentinel to a status code — services and
// repositories never see an http.Status* constant.
//
// The set is deliberately closed: a new failure mode means a new sentinel here
// plus one new case in writeError, nothing else.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrAuth       = errors.New("authentication failed")

	// ErrSecurity marks a detected sandbox violation, e.g. an uploaded file
	// whose resolved path escapes the user's storage directory. Always logged
	// server-side; the client only ever sees a generic message.
	ErrSecurity = errors.New("security violation")

	// ErrTooLarge marks an upload exceeding the size ceiling (413 semantics).
	ErrTooLarge = errors.New("payload too large")

	// The two upstream kinds stay distinct on purpose: "the analysis service
	// took too long" and "the analysis service is not running" call for
	// different responses from the caller, so they must not be collapsed.
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Unauthorized returns an AppError for any authentication failure.
//
// The message is intentionally uniform across "unknown user", "wrong
// password", "expired token" and "tampered token" — distinguishing them would
// let an attacker enumerate accounts or probe token handling.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrAuth,
		Message: message,
	}
}

// SecurityViolation returns the AppError sent to a client after a sandbox or
// path-escape detection. The interesting detail goes to the server log; the
// response body stays deliberately vague.
func SecurityViolation() *AppError {
	return &AppError{
		Err:     ErrSecurity,
		Message: "invalid file path",
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: message,
	}
}

func UpstreamTimeout() *AppError {
	return &AppError{
		Err:     ErrUpstreamTimeout,
		Message: "the analysis service took too long to respond, try again later",
	}
}

func UpstreamUnavailable() *AppError {
	return &AppError{
		Err:     ErrUpstreamUnavailable,
		Message: "the analysis service is not reachable",
	}
}
