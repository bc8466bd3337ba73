// Package memory is an in-process implementation of the store interfaces.
//
// Data lives in maps guarded by one mutex. Transactions run with the lock held
// and roll back by restoring a snapshot taken on entry.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

var (
	_ store.AccountStore    = (*Store)(nil)
	_ store.ResetTokenStore = (*Store)(nil)
	_ store.Transactor      = (*Store)(nil)
)

// Store keeps accounts and reset tokens in memory.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	accounts map[string]store.Account
	tokens   map[string]store.ResetToken
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		accounts: make(map[string]store.Account),
		tokens:   make(map[string]store.ResetToken),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetActive toggles the active flag of an account. Accounts are created active;
// deactivation is an administrative action outside the engine.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	acc.Active = active
	acc.UpdatedAt = s.now().UTC()
	s.accounts[id] = acc
	return nil
}

// ResetTokenCount returns the number of persisted reset tokens.
func (s *Store) ResetTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Store) CreateAccount(ctx context.Context, in store.NewAccount) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateAccount(ctx, in)
}

func (s *Store) AccountByID(ctx context.Context, id string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AccountByID(ctx, id)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AccountByEmail(ctx, email)
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AccountByUsername(ctx, username)
}

func (s *Store) AccountByExternalID(ctx context.Context, externalID string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AccountByExternalID(ctx, externalID)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdatePasswordHash(ctx, id, hash)
}

func (s *Store) UpdateExternalID(ctx context.Context, id, externalID string) (store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateExternalID(ctx, id, externalID)
}

func (s *Store) CreateResetToken(ctx context.Context, accountID, token string, expiresAt time.Time) (store.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateResetToken(ctx, accountID, token, expiresAt)
}

func (s *Store) ResetTokenByValue(ctx context.Context, token string) (store.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().ResetTokenByValue(ctx, token)
}

func (s *Store) MarkResetTokenUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().MarkResetTokenUsed(ctx, id)
}

// InTx runs fn with the store locked. Any error returned by fn restores the
// state captured before fn ran.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[string]store.Account, len(s.accounts))
	for k, v := range s.accounts {
		accounts[k] = v
	}
	tokens := make(map[string]store.ResetToken, len(s.tokens))
	for k, v := range s.tokens {
		tokens[k] = v
	}

	tx := s.tx()
	if err := fn(ctx, tx, tx); err != nil {
		s.accounts = accounts
		s.tokens = tokens
		return err
	}
	return nil
}

func (s *Store) tx() *unlocked {
	return &unlocked{s: s}
}

// unlocked implements the store interfaces assuming s.mu is held.
type unlocked struct {
	s *Store
}

func (u *unlocked) CreateAccount(_ context.Context, in store.NewAccount) (store.Account, error) {
	if in.PasswordHash == "" && in.ExternalID == "" {
		return store.Account{}, store.ErrNoCredential
	}
	email := normalizeEmail(in.Email)
	if _, err := u.find(func(acc store.Account) bool { return normalizeEmail(acc.Email) == email }); err == nil {
		return store.Account{}, &store.ConflictError{Field: store.FieldEmail}
	}
	if _, err := u.find(func(acc store.Account) bool { return acc.Username == in.Username }); err == nil {
		return store.Account{}, &store.ConflictError{Field: store.FieldUsername}
	}
	if in.ExternalID != "" {
		if _, err := u.find(func(acc store.Account) bool { return acc.ExternalID == in.ExternalID }); err == nil {
			return store.Account{}, &store.ConflictError{Field: store.FieldExternalID}
		}
	}

	now := u.s.now().UTC()
	acc := store.Account{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		ExternalID:   in.ExternalID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	u.s.accounts[acc.ID] = acc
	return acc, nil
}

func (u *unlocked) AccountByID(_ context.Context, id string) (store.Account, error) {
	acc, ok := u.s.accounts[id]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return acc, nil
}

func (u *unlocked) AccountByEmail(_ context.Context, email string) (store.Account, error) {
	email = normalizeEmail(email)
	return u.find(func(acc store.Account) bool { return normalizeEmail(acc.Email) == email })
}

func (u *unlocked) AccountByUsername(_ context.Context, username string) (store.Account, error) {
	return u.find(func(acc store.Account) bool { return acc.Username == username })
}

func (u *unlocked) AccountByExternalID(_ context.Context, externalID string) (store.Account, error) {
	if externalID == "" {
		return store.Account{}, store.ErrNotFound
	}
	return u.find(func(acc store.Account) bool { return acc.ExternalID == externalID })
}

func (u *unlocked) UpdatePasswordHash(_ context.Context, id, hash string) error {
	acc, ok := u.s.accounts[id]
	if !ok {
		return store.ErrNotFound
	}
	acc.PasswordHash = hash
	acc.UpdatedAt = u.s.now().UTC()
	u.s.accounts[id] = acc
	return nil
}

func (u *unlocked) UpdateExternalID(_ context.Context, id, externalID string) (store.Account, error) {
	acc, ok := u.s.accounts[id]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	for otherID, other := range u.s.accounts {
		if otherID != id && other.ExternalID != "" && other.ExternalID == externalID {
			return store.Account{}, &store.ConflictError{Field: store.FieldExternalID}
		}
	}
	acc.ExternalID = externalID
	acc.UpdatedAt = u.s.now().UTC()
	u.s.accounts[id] = acc
	return acc, nil
}

func (u *unlocked) CreateResetToken(_ context.Context, accountID, token string, expiresAt time.Time) (store.ResetToken, error) {
	if _, ok := u.s.tokens[token]; ok {
		return store.ResetToken{}, &store.ConflictError{Field: "token"}
	}
	rt := store.ResetToken{
		ID:        uuid.NewString(),
		Token:     token,
		AccountID: accountID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: u.s.now().UTC(),
	}
	u.s.tokens[token] = rt
	return rt, nil
}

func (u *unlocked) ResetTokenByValue(_ context.Context, token string) (store.ResetToken, error) {
	rt, ok := u.s.tokens[token]
	if !ok {
		return store.ResetToken{}, store.ErrNotFound
	}
	return rt, nil
}

func (u *unlocked) MarkResetTokenUsed(_ context.Context, id string) error {
	for key, rt := range u.s.tokens {
		if rt.ID != id {
			continue
		}
		if rt.Used {
			return store.ErrNotFound
		}
		rt.Used = true
		u.s.tokens[key] = rt
		return nil
	}
	return store.ErrNotFound
}

func (u *unlocked) find(match func(store.Account) bool) (store.Account, error) {
	for _, acc := range u.s.accounts {
		if match(acc) {
			return acc, nil
		}
	}
	return store.Account{}, store.ErrNotFound
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
