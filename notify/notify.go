// Package notify delivers password-reset messages.
//
// Delivery is best effort from the caller's point of view: the engine logs a
// failed send and still answers the reset request with its generic message.
package notify

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks -source=notify.go Notifier

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConfigured is returned by a notifier that lacks delivery settings.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier sends a password reset link to an address.
type Notifier interface {
	SendPasswordReset(ctx context.Context, to, resetLink string) error
}

// LogNotifier writes reset links to a logger instead of delivering them.
// It is meant for development setups without a mail provider.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendPasswordReset logs the link at warn level.
func (n LogNotifier) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "email delivery disabled, logging reset link",
		slog.String("to", to),
		slog.String("reset_link", resetLink),
	)
	return nil
}
