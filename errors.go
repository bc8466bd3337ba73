package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers unknown identifiers, password-less accounts
	// and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser is returned when a deactivated account authenticates.
	ErrInactiveUser = errors.New("user account is inactive")
	// ErrInvalidToken covers malformed, expired, wrong-kind and unknown tokens,
	// including used or expired reset tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned when a token names an account that no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is matched by *UserAlreadyExistsError.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrOAuth is matched by *OAuthError.
	ErrOAuth = errors.New("external login failed")
	// ErrUsernameUnavailable is returned when no free username could be derived
	// for a new external account.
	ErrUsernameUnavailable = errors.New("no username available")
	// ErrPasswordPolicy is returned when a new password violates length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidInput is returned for malformed email addresses or usernames.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned when a client IP exceeds an operation budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRateLimiterUnavailable is returned when the limiter backend cannot be reached.
	ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrEngineNotReady is returned by an Engine missing a required collaborator.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// UserAlreadyExistsError names the unique field that is already taken.
type UserAlreadyExistsError struct {
	Field string
}

func (e *UserAlreadyExistsError) Error() string {
	return fmt.Sprintf("user with this %s already exists", e.Field)
}

func (e *UserAlreadyExistsError) Is(target error) bool {
	return target == ErrUserAlreadyExists
}

// OAuthError carries a caller-facing reason for a failed external login.
type OAuthError struct {
	Message string
}

func (e *OAuthError) Error() string {
	if e.Message == "" {
		return ErrOAuth.Error()
	}
	return e.Message
}

func (e *OAuthError) Is(target error) bool {
	return target == ErrOAuth
}

func alreadyExists(field string) error {
	return &UserAlreadyExistsError{Field: field}
}

func oauthFailure(message string) error {
	return &OAuthError{Message: message}
}
