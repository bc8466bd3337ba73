package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireAccess returns middleware that accepts requests carrying a valid
// access token. Refresh tokens are rejected. The account is not loaded.
func RequireAccess(engine *authcore.Engine) func(http.Handler) http.Handler {
	return guard(func(r *http.Request, token string) (context.Context, error) {
		id, err := engine.ValidateAccess(token)
		if err != nil {
			return nil, err
		}
		return context.WithValue(r.Context(), accountIDContextKey{}, id), nil
	})
}

// RequireActiveAccount returns middleware that validates the access token and
// loads its account. Deleted accounts get 401 and deactivated accounts 403.
func RequireActiveAccount(engine *authcore.Engine) func(http.Handler) http.Handler {
	return guard(func(r *http.Request, token string) (context.Context, error) {
		account, err := engine.CurrentAccount(r.Context(), token)
		if err != nil {
			return nil, err
		}
		ctx := context.WithValue(r.Context(), accountIDContextKey{}, account.ID)
		return context.WithValue(ctx, accountContextKey{}, account), nil
	})
}
