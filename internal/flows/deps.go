package flows

import (
	"context"
	"io"
	"log/slog"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register      RegisterDeps
	Login         LoginDeps
	External      ExternalDeps
	Refresh       RefreshDeps
	Validate      ValidateDeps
	PasswordReset PasswordResetDeps
}

// TokenPair is the flow-local access/refresh token response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuditFunc matches the engine's audit emitter.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID string, err error, metadata func() map[string]string)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopMetric(int) {}

func emptyContextValue(context.Context) string { return "" }

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
