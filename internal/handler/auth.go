// Package handler contains the HTTP layer: request parsing, response writing,
// and nothing else. Business rules live in internal/service.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/auth"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/service"
)

// AuthHandler exposes registration, login, and the current-user probe.
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// credentialsRequest is the body for both register and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse returns the token plus the public identity. The client stores
// the token and sends it back in the Authorization header.
type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/auth/register
// BODY: {"username": "sakif", "password": "secret123"}
// 201 on success, 400 on validation failure, 409 if the username is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

// HandleLogin verifies credentials and issues a fresh token.
//
// HTTP: POST /api/auth/login
// 200 on success, 401 with a uniform message on any credential failure.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

// HandleMe returns the authenticated caller's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth sets the identity in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", identity.UserID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
