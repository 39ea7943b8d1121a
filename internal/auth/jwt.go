// Package auth provides JWT token generation/validation and password hashing.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Client POSTs credentials to /api/auth/register or /api/auth/login
// 2. Server verifies them and issues a signed JWT access token
// 3. On subsequent API calls, the client sends the token in the
//    Authorization header; middleware validates it and sets the caller's
//    identity in the request context
//
// WHY JWT?
// JWT (JSON Web Token) is stateless — the server doesn't need to store session
// data. Everything needed (user ID, username, expiry) is inside the signed
// token, and the HMAC signature ensures nobody can tamper with it without the
// secret key. There is no server-side revocation list: a token is valid until
// it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long an issued session token stays valid.
const TokenLifetime = 24 * time.Hour

const issuer = "datachat"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations — the process refuses to start
// without one (see cmd/server).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims (Subject,
// ExpiresAt, IssuedAt, Issuer) and adds the username so protected handlers
// can display it without a DB lookup.
//
// "sub" carries the internal user ID — the standard claim for identifying
// who the token belongs to.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity is what a validated token resolves to.
type Identity struct {
	UserID   string
	Username string
}

// Generate creates and signs a new access token for the given user.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple — good for single-server deployments
func (s *TokenService) Generate(userID, username string) (string, error) {
	return s.GenerateWithDuration(userID, username, TokenLifetime)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID, username string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string, returning the identity it encodes.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches (prevents tokens from other apps)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
//
// The returned error never distinguishes "expired" from "tampered" — callers
// translate any failure into one uniform 401.
func (s *TokenService) Validate(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}

	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return &Identity{UserID: c.Subject, Username: c.Username}, nil
}
