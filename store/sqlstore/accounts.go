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

// queries runs statements against a DBTX, either the pool or a transaction.
type queries struct {
	db      DBTX
	dialect Dialect
	now     func() time.Time
}

const accountColumns = `id, email, username, password_hash, external_id, is_active, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, in store.NewAccount) (store.Account, error) {
	return s.queries(s.db).CreateAccount(ctx, in)
}

func (s *Store) AccountByID(ctx context.Context, id string) (store.Account, error) {
	return s.queries(s.db).AccountByID(ctx, id)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	return s.queries(s.db).AccountByEmail(ctx, email)
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (store.Account, error) {
	return s.queries(s.db).AccountByUsername(ctx, username)
}

func (s *Store) AccountByExternalID(ctx context.Context, externalID string) (store.Account, error) {
	return s.queries(s.db).AccountByExternalID(ctx, externalID)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.queries(s.db).UpdatePasswordHash(ctx, id, hash)
}

func (s *Store) UpdateExternalID(ctx context.Context, id, externalID string) (store.Account, error) {
	return s.queries(s.db).UpdateExternalID(ctx, id, externalID)
}

// SetActive toggles the active flag of an account.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	q := s.queries(s.db)
	res, err := q.db.ExecContext(ctx,
		rebind(q.dialect, `UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`),
		active, toMillis(q.now()), id)
	if err != nil {
		return fmt.Errorf("sqlstore: set active: %w", err)
	}
	return requireAffected(res)
}

func (q *queries) CreateAccount(ctx context.Context, in store.NewAccount) (store.Account, error) {
	if in.PasswordHash == "" && in.ExternalID == "" {
		return store.Account{}, store.ErrNoCredential
	}
	now := q.now().UTC()
	acc := store.Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		ExternalID:   in.ExternalID,
		Active:       true,
		CreatedAt:    now.Truncate(time.Millisecond),
		UpdatedAt:    now.Truncate(time.Millisecond),
	}

	_, err := q.db.ExecContext(ctx, rebind(q.dialect, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		acc.ID, acc.Email, acc.Username, nullString(acc.PasswordHash), nullString(acc.ExternalID),
		acc.Active, toMillis(now), toMillis(now),
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return store.Account{}, &store.ConflictError{Field: field, Err: err}
		}
		return store.Account{}, fmt.Errorf("sqlstore: create account: %w", err)
	}
	return acc, nil
}

func (q *queries) AccountByID(ctx context.Context, id string) (store.Account, error) {
	return q.accountWhere(ctx, "id = ?", id)
}

func (q *queries) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	return q.accountWhere(ctx, "email = ?", email)
}

func (q *queries) AccountByUsername(ctx context.Context, username string) (store.Account, error) {
	return q.accountWhere(ctx, "username = ?", username)
}

func (q *queries) AccountByExternalID(ctx context.Context, externalID string) (store.Account, error) {
	if externalID == "" {
		return store.Account{}, store.ErrNotFound
	}
	return q.accountWhere(ctx, "external_id = ?", externalID)
}

func (q *queries) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := q.db.ExecContext(ctx,
		rebind(q.dialect, `UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`),
		hash, toMillis(q.now()), id)
	if err != nil {
		return fmt.Errorf("sqlstore: update password hash: %w", err)
	}
	return requireAffected(res)
}

func (q *queries) UpdateExternalID(ctx context.Context, id, externalID string) (store.Account, error) {
	res, err := q.db.ExecContext(ctx,
		rebind(q.dialect, `UPDATE accounts SET external_id = ?, updated_at = ? WHERE id = ?`),
		externalID, toMillis(q.now()), id)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return store.Account{}, &store.ConflictError{Field: field, Err: err}
		}
		return store.Account{}, fmt.Errorf("sqlstore: update external id: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return store.Account{}, err
	}
	return q.AccountByID(ctx, id)
}

func (q *queries) accountWhere(ctx context.Context, cond string, arg any) (store.Account, error) {
	row := q.db.QueryRowContext(ctx,
		rebind(q.dialect, `SELECT `+accountColumns+` FROM accounts WHERE `+cond), arg)

	var (
		acc                  store.Account
		passwordHash, extID  sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Username, &passwordHash, &extID, &acc.Active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("sqlstore: load account: %w", err)
	}
	acc.PasswordHash = passwordHash.String
	acc.ExternalID = extID.String
	acc.CreatedAt = fromMillis(createdAt)
	acc.UpdatedAt = fromMillis(updatedAt)
	return acc, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
