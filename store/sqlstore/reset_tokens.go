package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

func (s *Store) CreateResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) (store.ResetToken, error) {
	return s.queries(s.db).CreateResetToken(ctx, accountID, token, expiresAt)
}

func (s *Store) ResetTokenByValue(ctx context.Context, token string) (store.ResetToken, error) {
	return s.queries(s.db).ResetTokenByValue(ctx, token)
}

func (s *Store) MarkResetTokenUsed(ctx context.Context, id string) error {
	return s.queries(s.db).MarkResetTokenUsed(ctx, id)
}

func (q *queries) CreateResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) (store.ResetToken, error) {
	now := q.now().UTC()
	rt := store.ResetToken{
		ID:        uuid.NewString(),
		Token:     token,
		AccountID: accountID,
		ExpiresAt: fromMillis(toMillis(expiresAt)),
		CreatedAt: fromMillis(toMillis(now)),
	}

	_, err := q.db.ExecContext(ctx, rebind(q.dialect, `
		INSERT INTO password_reset_tokens (id, token, account_id, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		rt.ID, rt.Token, rt.AccountID, toMillis(expiresAt), false, toMillis(now),
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return store.ResetToken{}, &store.ConflictError{Field: field, Err: err}
		}
		return store.ResetToken{}, fmt.Errorf("sqlstore: create reset token: %w", err)
	}
	return rt, nil
}

func (q *queries) ResetTokenByValue(ctx context.Context, token string) (store.ResetToken, error) {
	row := q.db.QueryRowContext(ctx, rebind(q.dialect, `
		SELECT id, token, account_id, expires_at, used, created_at
		FROM password_reset_tokens WHERE token = ?`), token)

	var (
		rt                   store.ResetToken
		expiresAt, createdAt int64
	)
	if err := row.Scan(&rt.ID, &rt.Token, &rt.AccountID, &expiresAt, &rt.Used, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ResetToken{}, store.ErrNotFound
		}
		return store.ResetToken{}, fmt.Errorf("sqlstore: load reset token: %w", err)
	}
	rt.ExpiresAt = fromMillis(expiresAt)
	rt.CreatedAt = fromMillis(createdAt)
	return rt, nil
}

func (q *queries) MarkResetTokenUsed(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		rebind(q.dialect, `UPDATE password_reset_tokens SET used = ? WHERE id = ? AND used = ?`),
		true, id, false)
	if err != nil {
		return fmt.Errorf("sqlstore: mark reset token used: %w", err)
	}
	return requireAffected(res)
}
