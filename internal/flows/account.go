package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authcore/store"
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// RegisterMetrics carries metric IDs needed by the register flow.
type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterFailure     int
	RegisterRateLimited int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	RegisterSuccess string
	RegisterFailure string
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady error
	InvalidInput   error
	PasswordPolicy error
	RateLimited    error
	// AlreadyExists builds the host conflict error for a field name.
	AlreadyExists func(field string) error
}

// RegisterDeps supplies collaborators for RunRegister.
type RegisterDeps struct {
	Policy CredentialPolicy

	ClientIPFromContext func(context.Context) string
	// CheckLimiter is optional; nil disables rate limiting.
	CheckLimiter    func(ctx context.Context, key string) error
	MapLimiterError func(error) error

	AccountByEmail    func(context.Context, string) (store.Account, error)
	AccountByUsername func(context.Context, string) (store.Account, error)
	CreateAccount     func(context.Context, store.NewAccount) (store.Account, error)
	HashPassword      func(string) (string, error)

	Logger    *slog.Logger
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister creates a password account after checking input policy and
// email/username availability. A unique-constraint race lost inside the store
// surfaces as the same conflict error as the pre-check.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (store.Account, error) {
	normalizeRegisterDeps(&deps)

	if deps.AccountByEmail == nil || deps.AccountByUsername == nil || deps.CreateAccount == nil || deps.HashPassword == nil || deps.Errors.AlreadyExists == nil {
		return store.Account{}, deps.Errors.EngineNotReady
	}

	fail := func(err error, why string, m map[string]string) (store.Account, error) {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			out := map[string]string{"reason": why}
			for k, v := range m {
				out[k] = v
			}
			return out
		})
		return store.Account{}, err
	}

	email := NormalizeEmail(in.Email)
	if err := deps.Policy.CheckEmail(email); err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.InvalidInput, err), "invalid_email", nil)
	}
	if err := deps.Policy.CheckUsername(in.Username); err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.InvalidInput, err), "invalid_username", nil)
	}
	if err := deps.Policy.CheckPassword(in.Password); err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err), "password_policy", nil)
	}

	if deps.CheckLimiter != nil {
		if err := deps.CheckLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.RegisterRateLimited)
			}
			return fail(mapped, "rate_limited", nil)
		}
	}

	if _, err := deps.AccountByEmail(ctx, email); err == nil {
		return fail(deps.Errors.AlreadyExists(store.FieldEmail), "email_taken", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fail(fmt.Errorf("lookup account by email: %w", err), "store_error", nil)
	}
	if _, err := deps.AccountByUsername(ctx, in.Username); err == nil {
		return fail(deps.Errors.AlreadyExists(store.FieldUsername), "username_taken", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fail(fmt.Errorf("lookup account by username: %w", err), "store_error", nil)
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err), "hash_failed", nil)
	}

	account, err := deps.CreateAccount(ctx, store.NewAccount{
		Email:        email,
		Username:     in.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if field, ok := store.ConflictField(err); ok {
			deps.Logger.InfoContext(ctx, "registration lost uniqueness race", slog.String("field", field))
			return fail(deps.Errors.AlreadyExists(field), "conflict", map[string]string{"field": field})
		}
		return fail(fmt.Errorf("create account: %w", err), "store_error", nil)
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, account.ID, nil, nil)
	return account, nil
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = emptyContextValue
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.Logger == nil {
		deps.Logger = discardLogger
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Policy == (CredentialPolicy{}) {
		deps.Policy = DefaultCredentialPolicy()
	}
}
