package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(context.Background(), DialectSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	require.Equal(t, q, rebind(DialectSQLite, q))
	require.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, rebind(DialectPostgres, q))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	require.Equal(t, DialectPostgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	require.Equal(t, DialectSQLite, d)

	_, err = ParseDialect("mysql")
	require.Error(t, err)
}

func TestSQLiteAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	acc, err := s.CreateAccount(ctx, store.NewAccount{Email: "a@example.com", Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	require.True(t, acc.Active)

	byEmail, err := s.AccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byEmail.ID)
	require.Equal(t, "hash", byEmail.PasswordHash)
	require.Empty(t, byEmail.ExternalID)

	byName, err := s.AccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byName.ID)

	linked, err := s.UpdateExternalID(ctx, acc.ID, "google-1")
	require.NoError(t, err)
	require.Equal(t, "google-1", linked.ExternalID)

	byExt, err := s.AccountByExternalID(ctx, "google-1")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byExt.ID)

	require.NoError(t, s.UpdatePasswordHash(ctx, acc.ID, "new-hash"))
	got, err := s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)

	require.NoError(t, s.SetActive(ctx, acc.ID, false))
	got, err = s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	_, err = s.AccountByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)
}

func TestSQLiteUniqueViolations(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.CreateAccount(ctx, store.NewAccount{Email: "a@example.com", Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, store.NewAccount{Email: "a@example.com", Username: "bob", PasswordHash: "h"})
	field, ok := store.ConflictField(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, store.FieldEmail, field)

	_, err = s.CreateAccount(ctx, store.NewAccount{Email: "b@example.com", Username: "alice", PasswordHash: "h"})
	field, ok = store.ConflictField(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, store.FieldUsername, field)
}

func TestSQLiteOAuthOnlyAccount(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	acc, err := s.CreateAccount(ctx, store.NewAccount{Email: "g@example.com", Username: "gina", ExternalID: "sub-1"})
	require.NoError(t, err)

	got, err := s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.False(t, got.HasPassword())
	require.Equal(t, "sub-1", got.ExternalID)
}

func TestSQLiteAccountRequiresCredential(t *testing.T) {
	s := openSQLite(t)

	_, err := s.CreateAccount(context.Background(), store.NewAccount{Email: "n@example.com", Username: "nobody"})
	require.ErrorIs(t, err, store.ErrNoCredential)
}

func TestSQLiteResetTokenSingleUse(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	acc, err := s.CreateAccount(ctx, store.NewAccount{Email: "a@example.com", Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)

	expires := time.Now().Add(15 * time.Minute)
	rt, err := s.CreateResetToken(ctx, acc.ID, "token-value", expires)
	require.NoError(t, err)

	got, err := s.ResetTokenByValue(ctx, "token-value")
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)
	require.Equal(t, acc.ID, got.AccountID)
	require.False(t, got.Used)
	require.WithinDuration(t, expires, got.ExpiresAt, time.Millisecond)

	require.NoError(t, s.MarkResetTokenUsed(ctx, rt.ID))
	require.ErrorIs(t, s.MarkResetTokenUsed(ctx, rt.ID), store.ErrNotFound)

	got, err = s.ResetTokenByValue(ctx, "token-value")
	require.NoError(t, err)
	require.True(t, got.Used)

	_, err = s.ResetTokenByValue(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	acc, err := s.CreateAccount(ctx, store.NewAccount{Email: "a@example.com", Username: "alice", PasswordHash: "old"})
	require.NoError(t, err)
	rt, err := s.CreateResetToken(ctx, acc.ID, "tok", time.Now().Add(time.Minute))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(ctx context.Context, accounts store.AccountStore, tokens store.ResetTokenStore) error {
		if err := accounts.UpdatePasswordHash(ctx, acc.ID, "new"); err != nil {
			return err
		}
		if err := tokens.MarkResetTokenUsed(ctx, rt.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "old", got.PasswordHash)
	tok, err := s.ResetTokenByValue(ctx, "tok")
	require.NoError(t, err)
	require.False(t, tok.Used)

	err = s.InTx(ctx, func(ctx context.Context, accounts store.AccountStore, tokens store.ResetTokenStore) error {
		if err := accounts.UpdatePasswordHash(ctx, acc.ID, "new"); err != nil {
			return err
		}
		return tokens.MarkResetTokenUsed(ctx, rt.ID)
	})
	require.NoError(t, err)
	got, err = s.AccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)
}

func TestPostgresAccountLifecycle(t *testing.T) {
	dsn := os.Getenv("AUTHCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AUTHCORE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, DialectPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	email := "pg-" + suffix + "@example.com"
	acc, err := s.CreateAccount(ctx, store.NewAccount{Email: email, Username: "pg_" + suffix, PasswordHash: "h"})
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, store.NewAccount{Email: email, Username: "pg2_" + suffix, PasswordHash: "h"})
	field, ok := store.ConflictField(err)
	require.True(t, ok)
	require.Equal(t, store.FieldEmail, field)

	got, err := s.AccountByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
}
