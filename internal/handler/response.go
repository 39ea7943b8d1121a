package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "dataset not found with id abc123"}
//
// The frontend always knows what fields to expect, regardless of whether
// it's a 400, 404, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/datachat/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error kind (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code must be set BEFORE writing the body. Once
// Encode writes the first byte, the headers are already on the wire.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent — all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto the appropriate HTTP status and body.
//
// THE SINGLE TRANSLATION POINT:
// Services return apperror-tagged errors; this is the one place they become
// HTTP. errors.Is walks the whole wrap chain (our AppError implements
// Unwrap), so a service error like
//
//	fmt.Errorf("storing upload: %w", apperror.SecurityViolation())
//
// still matches its sentinel here.
//
// Unknown errors fall through to a generic 500 with NO detail: the raw
// message might contain SQL, file paths, or upstream responses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"
	message := "an internal error occurred"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			kind = "validation_error"
		case errors.Is(err, apperror.ErrAuth):
			status = http.StatusUnauthorized // 401
			kind = "auth_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			kind = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			kind = "conflict"
		case errors.Is(err, apperror.ErrSecurity):
			// 400, not 403: the response must not confirm to an attacker
			// that a traversal probe was specifically detected.
			status = http.StatusBadRequest
			kind = "invalid_request"
		case errors.Is(err, apperror.ErrTooLarge):
			status = http.StatusRequestEntityTooLarge // 413
			kind = "payload_too_large"
		case errors.Is(err, apperror.ErrUpstreamUnavailable):
			status = http.StatusServiceUnavailable // 503
			kind = "upstream_unavailable"
		case errors.Is(err, apperror.ErrUpstreamTimeout):
			status = http.StatusGatewayTimeout // 504
			kind = "upstream_timeout"
		default:
			// Tagged but unmapped — keep the generic message.
			message = "an internal error occurred"
		}
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}
