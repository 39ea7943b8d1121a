// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services accept primitives and return domain models plus apperror-tagged
// errors. They never import net/http and never see a status code; the handler
// layer translates both ways. Every service takes its repository as an
// interface so tests can substitute in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/auth"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
)

// Credential rules. Username bounds keep identifiers usable in sandbox
// directory names; the password floor is a minimum sanity bar, not a
// full policy. Username lengths count runes, so a 20-character multibyte
// name is fine. The password ceiling counts BYTES because that is bcrypt's
// actual limit — it silently truncates input beyond 72 bytes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// invalidCredentials is the single message for every login failure.
// "User not found" and "wrong password" MUST read identically, or the login
// endpoint becomes a username-enumeration oracle.
const invalidCredentials = "invalid username or password"

// AuthService handles registration and login.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the issued token with the public user record so the
// handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account and signs the first session token.
//
// FLOW:
//  1. Validate username/password shape (ValidationError)
//  2. bcrypt the password — the plaintext is never stored anywhere
//  3. Insert; a duplicate username surfaces as ConflictError from the
//     repository (the UNIQUE constraint is the authority, not a pre-check)
//  4. Issue a token so the client is logged in immediately
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and signs a fresh session token.
//
// Both failure paths — unknown username and wrong password — return the same
// AuthError with the same message. The bcrypt comparison still runs in the
// wrong-password case, so response timing differs only by a DB miss, not by
// which secret check failed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "username and password are required")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
// Used by the /api/me handler after the middleware validates the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return user, nil
}
