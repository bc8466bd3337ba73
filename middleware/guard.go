package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

const invalidCredentialsMessage = "Invalid authentication credentials"

type accountIDContextKey struct{}
type accountContextKey struct{}

// AccountIDFromContext returns the account id stored by a guard.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDContextKey{}).(string)
	return id, ok && id != ""
}

// AccountFromContext returns the account loaded by RequireActiveAccount.
func AccountFromContext(ctx context.Context) (authcore.Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(authcore.Account)
	return account, ok
}

// guard authenticates the bearer token with authenticate and stores the
// resulting context values before calling next.
func guard(authenticate func(*http.Request, string) (context.Context, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, authcore.ErrInvalidToken)
				return
			}

			ctx, err := authenticate(r, token)
			if err != nil {
				reject(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func reject(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	message := invalidCredentialsMessage

	switch {
	case errors.Is(err, authcore.ErrInactiveUser):
		status = http.StatusForbidden
		message = "User account is inactive"
	case errors.Is(err, authcore.ErrEngineNotReady):
		status = http.StatusServiceUnavailable
		message = "Service unavailable"
	case errors.Is(err, authcore.ErrInvalidToken), errors.Is(err, authcore.ErrUserNotFound):
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"data":    nil,
	})
}
