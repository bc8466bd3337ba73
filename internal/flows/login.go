package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authcore/store"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Account store.Account
	Tokens  TokenPair
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordRehashed int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	InactiveUser       error
	RateLimited        error
}

// LoginDeps supplies collaborators for RunLogin.
type LoginDeps struct {
	// UpgradeOnLogin rehashes outdated password hashes after a successful check.
	UpgradeOnLogin bool
	// DummyHash is verified against when no account matches, so unknown
	// identifiers cost the same as wrong passwords.
	DummyHash string

	ClientIPFromContext func(context.Context) string
	CheckLimiter        func(ctx context.Context, key string) error
	MapLimiterError     func(error) error

	AccountByEmail     func(context.Context, string) (store.Account, error)
	AccountByUsername  func(context.Context, string) (store.Account, error)
	UpdatePasswordHash func(context.Context, string, string) error

	VerifyPassword func(password, encoded string) bool
	NeedsRehash    func(encoded string) bool
	HashPassword   func(string) (string, error)
	IssuePair      func(subject string) (TokenPair, error)

	Logger    *slog.Logger
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates identifier (email first, then username) with a
// password and issues a token pair. Unknown accounts, OAuth-only accounts and
// wrong passwords all return InvalidCredentials.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) (LoginResult, error) {
	normalizeLoginDeps(&deps)

	if deps.AccountByEmail == nil || deps.AccountByUsername == nil || deps.VerifyPassword == nil || deps.IssuePair == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLimiter != nil {
		if err := deps.CheckLimiter(ctx, ip); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
				deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", mapped, reason("rate_limited"))
			} else {
				deps.MetricInc(deps.Metrics.LoginFailure)
				deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", mapped, reason("limiter_unavailable"))
			}
			return LoginResult{}, mapped
		}
	}

	account, err := lookupLoginAccount(ctx, identifier, deps)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", err, reason("store_error"))
			return LoginResult{}, err
		}
		if deps.DummyHash != "" {
			deps.VerifyPassword(password, deps.DummyHash)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.InvalidCredentials, reason("unknown_identifier"))
		return LoginResult{}, deps.Errors.InvalidCredentials
	}

	if !account.HasPassword() {
		if deps.DummyHash != "" {
			deps.VerifyPassword(password, deps.DummyHash)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, deps.Errors.InvalidCredentials, reason("no_password"))
		return LoginResult{}, deps.Errors.InvalidCredentials
	}

	// The password is checked before the active flag so that the inactive
	// signal is only given to callers holding the right password.
	if !deps.VerifyPassword(password, account.PasswordHash) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, deps.Errors.InvalidCredentials, reason("password_mismatch"))
		return LoginResult{}, deps.Errors.InvalidCredentials
	}
	if !account.Active {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, deps.Errors.InactiveUser, reason("inactive"))
		return LoginResult{}, deps.Errors.InactiveUser
	}

	if deps.UpgradeOnLogin {
		rehashPassword(ctx, account, password, deps)
	}

	pair, err := deps.IssuePair(account.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, account.ID, err, reason("issue_failed"))
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"method": "password"}
	})
	return LoginResult{Account: account, Tokens: pair}, nil
}

func lookupLoginAccount(ctx context.Context, identifier string, deps LoginDeps) (store.Account, error) {
	if identifier == "" {
		return store.Account{}, store.ErrNotFound
	}
	account, err := deps.AccountByEmail(ctx, NormalizeEmail(identifier))
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return account, err
	}
	return deps.AccountByUsername(ctx, identifier)
}

// rehashPassword is best-effort: failures are logged and never fail the login.
func rehashPassword(ctx context.Context, account store.Account, password string, deps LoginDeps) {
	if deps.NeedsRehash == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	if !deps.NeedsRehash(account.PasswordHash) {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Logger.WarnContext(ctx, "password rehash failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return
	}
	if err := deps.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		deps.Logger.WarnContext(ctx, "password rehash not persisted", slog.String("account_id", account.ID), slog.Any("error", err))
		return
	}
	deps.MetricInc(deps.Metrics.PasswordRehashed)
}

func normalizeLoginDeps(deps *LoginDeps) {
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
}
