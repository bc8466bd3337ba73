package authcore

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/authcore/identity"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/store"
)

// Account is the identity record returned by engine operations.
type Account = store.Account

// AccountStore persists accounts.
type AccountStore = store.AccountStore

// ResetTokenStore persists password reset tokens.
type ResetTokenStore = store.ResetTokenStore

// Store is a backend serving both accounts and reset tokens.
type Store interface {
	store.AccountStore
	store.ResetTokenStore
}

// Notifier delivers password reset links.
type Notifier = notify.Notifier

// IdentityVerifier turns a raw external identity token into an Assertion.
type IdentityVerifier = identity.Verifier

// Assertion is a verified external identity.
type Assertion = identity.Assertion

// RegisterRequest carries the fields accepted by Engine.Register.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// TokenPair is an access token with its companion refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by the login operations that also expose the
// authenticated account.
type LoginResult struct {
	Account Account
	Tokens  TokenPair
}

/*
====================================
AUDIT
====================================
*/

// AuditEvent is one record delivered to an AuditSink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events off the request path.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink exposes audit events on a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs audit events.
type SlogSink = internalaudit.SlogSink

// MultiSink fans audit events out to several sinks.
type MultiSink = internalaudit.MultiSink

// AuditErrorCode is the stable error label stored in AuditEvent.Error.
type AuditErrorCode string

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) SlogSink {
	return internalaudit.NewSlogSink(logger)
}
