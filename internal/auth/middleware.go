package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "identity", id), ANY package that knows the string
// can read or shadow your value. Using a package-private type prevents
// collisions: only THIS package can create a key of type contextKey, so only
// this package can read or write identity values in the context.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the token from the Authorization header — either a bare token or
// the conventional "Bearer <token>" form — validates it, and stores the
// caller's Identity in the request context. If the token is missing, expired,
// or tampered with, it returns 401 Unauthorized with a uniform body and stops
// the request chain. The body never says WHICH check failed.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that "wraps" the original. Chi applies middlewares in a chain:
// req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromRequest(r, tokens)
			if err != nil {
				// Written by hand rather than via http.Error, which would
				// stomp the Content-Type with text/plain.
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"auth_error","message":"valid authentication required"}` + "\n"))
				return
			}

			// Store the identity in context so handlers can read it
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated caller from the request
// context.
//
// Returns (nil, false) if the request carried no valid token. On routes behind
// RequireAuth this always returns (identity, true), but handlers still check
// the bool rather than assume.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil && id.UserID != ""
}

// identityFromRequest reads and validates the Authorization header.
//
// ACCEPTED FORMS:
//
//	Authorization: Bearer eyJhbGciOi...
//	Authorization: eyJhbGciOi...
//
// The bare form exists because several CSV-tooling clients send the raw token;
// stripping an optional prefix costs nothing and keeps both working.
func identityFromRequest(r *http.Request, tokens *TokenService) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.New("auth: no authorization header")
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return nil, errors.New("auth: empty bearer token")
	}

	return tokens.Validate(tokenStr)
}
