// Package store defines the persistence contract consumed by the authcore engine.
//
// The engine never talks to a database directly. It calls an [AccountStore] for
// identity records and a [ResetTokenStore] for password-recovery tokens. Both may be
// served by one backend; when that backend also implements [Transactor] the
// reset-confirm operation updates the password hash and consumes the token in a
// single transaction.
//
// Implementations live in subpackages:
//
//   - store/memory: in-process maps, for tests and single-node demos
//   - store/sqlstore: Postgres (pgx) and SQLite (modernc) through database/sql
//   - store/redisreset: reset tokens only, in Redis
//
// Uniqueness of email, username and external id is enforced by the backend and
// reported as a [*ConflictError] naming the violated field.
package store

import (
	"context"
	"time"
)

// Account is the identity record owned by the account store.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	ExternalID   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (a Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// NewAccount carries the fields accepted by AccountStore.CreateAccount. At least
// one of PasswordHash and ExternalID must be set.
type NewAccount struct {
	Email        string
	Username     string
	PasswordHash string
	ExternalID   string
}

// ResetToken is a persisted single-use password recovery secret.
type ResetToken struct {
	ID        string
	Token     string
	AccountID string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AccountStore persists accounts. Lookups return ErrNotFound when no record matches.
type AccountStore interface {
	CreateAccount(ctx context.Context, in NewAccount) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByUsername(ctx context.Context, username string) (Account, error)
	AccountByExternalID(ctx context.Context, externalID string) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateExternalID(ctx context.Context, id, externalID string) (Account, error)
}

// ResetTokenStore persists reset tokens. Tokens are never deleted by the engine.
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) (ResetToken, error)
	ResetTokenByValue(ctx context.Context, token string) (ResetToken, error)
	// MarkResetTokenUsed flips used to true. It returns ErrNotFound when the
	// token does not exist or was already used, so concurrent confirms race to
	// exactly one winner.
	MarkResetTokenUsed(ctx context.Context, id string) error
}

// TxFunc runs inside a transaction with stores bound to it.
type TxFunc func(ctx context.Context, accounts AccountStore, tokens ResetTokenStore) error

// Transactor is implemented by backends able to run account and reset-token
// mutations atomically.
type Transactor interface {
	InTx(ctx context.Context, fn TxFunc) error
}
