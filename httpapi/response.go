package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// envelope is the body of every /auth response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenResponse(pair authcore.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message})
}

// writeError maps engine errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var exists *authcore.UserAlreadyExistsError
	var oauth *authcore.OAuthError

	switch {
	case errors.As(err, &exists):
		writeFailure(w, http.StatusBadRequest, "User with this "+exists.Field+" already exists")
	case errors.As(err, &oauth):
		writeFailure(w, http.StatusBadRequest, oauth.Error())
	case errors.Is(err, authcore.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, authcore.ErrInactiveUser):
		writeFailure(w, http.StatusForbidden, "User account is inactive")
	case errors.Is(err, authcore.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, "User not found")
	case errors.Is(err, authcore.ErrInvalidToken):
		writeFailure(w, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, authcore.ErrInvalidInput), errors.Is(err, authcore.ErrPasswordPolicy):
		writeFailure(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, authcore.ErrUsernameUnavailable):
		writeFailure(w, http.StatusConflict, "No username available")
	case errors.Is(err, authcore.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeFailure(w, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.Is(err, authcore.ErrRateLimiterUnavailable), errors.Is(err, authcore.ErrEngineNotReady):
		logger.ErrorContext(r.Context(), "auth backend unavailable", slog.Any("error", err))
		writeFailure(w, http.StatusServiceUnavailable, "Service unavailable")
	default:
		logger.ErrorContext(r.Context(), "auth request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}
