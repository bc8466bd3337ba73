package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/store"
)

// ExternalMetrics carries metric IDs needed by the external login flow.
type ExternalMetrics struct {
	ExternalLoginSuccess int
	ExternalLoginFailure int
	ExternalLinked       int
	ExternalCreated      int
}

// ExternalEvents carries audit event names used by the external login flow.
type ExternalEvents struct {
	ExternalLoginSuccess string
	ExternalLoginFailure string
	ExternalLinked       string
	ExternalCreated      string
}

// ExternalErrors carries host-level sentinel errors used by the external login flow.
type ExternalErrors struct {
	EngineNotReady      error
	InactiveUser        error
	UsernameUnavailable error
	// OAuth builds the host OAuth error carrying a caller-facing message.
	OAuth         func(message string) error
	AlreadyExists func(field string) error
}

// ExternalDeps supplies collaborators for RunLoginExternal and RunReconcile.
type ExternalDeps struct {
	TrustedIssuers []string
	// MaxUsernameProbes bounds the numbered suffixes tried after the base
	// username.
	MaxUsernameProbes int

	VerifyAssertion     func(context.Context, string) (identity.Assertion, error)
	AccountByExternalID func(context.Context, string) (store.Account, error)
	AccountByEmail      func(context.Context, string) (store.Account, error)
	AccountByUsername   func(context.Context, string) (store.Account, error)
	UpdateExternalID    func(context.Context, string, string) (store.Account, error)
	CreateAccount       func(context.Context, store.NewAccount) (store.Account, error)
	IssuePair           func(subject string) (TokenPair, error)

	Logger    *slog.Logger
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics ExternalMetrics
	Events  ExternalEvents
	Errors  ExternalErrors
}

const externalVerifyFailedMessage = "Google OAuth failed"

// RunLoginExternal verifies a raw identity assertion, reconciles it with a
// local account and issues a token pair.
func RunLoginExternal(ctx context.Context, raw string, deps ExternalDeps) (LoginResult, error) {
	normalizeExternalDeps(&deps)

	if deps.VerifyAssertion == nil || deps.IssuePair == nil || deps.Errors.OAuth == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	if strings.TrimSpace(raw) == "" {
		err := deps.Errors.OAuth(externalVerifyFailedMessage)
		deps.MetricInc(deps.Metrics.ExternalLoginFailure)
		deps.EmitAudit(ctx, deps.Events.ExternalLoginFailure, false, "", err, reason("empty_assertion"))
		return LoginResult{}, err
	}

	assertion, err := deps.VerifyAssertion(ctx, raw)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return LoginResult{}, err
		}
		deps.Logger.InfoContext(ctx, "identity assertion rejected", slog.Any("error", err))
		mapped := deps.Errors.OAuth(externalVerifyFailedMessage)
		deps.MetricInc(deps.Metrics.ExternalLoginFailure)
		deps.EmitAudit(ctx, deps.Events.ExternalLoginFailure, false, "", mapped, reason("verification_failed"))
		return LoginResult{}, mapped
	}

	account, err := RunReconcile(ctx, assertion, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.ExternalLoginFailure)
		deps.EmitAudit(ctx, deps.Events.ExternalLoginFailure, false, account.ID, err, func() map[string]string {
			return map[string]string{"reason": "reconcile_failed", "issuer": assertion.Issuer}
		})
		return LoginResult{}, err
	}

	pair, err := deps.IssuePair(account.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.ExternalLoginFailure)
		deps.EmitAudit(ctx, deps.Events.ExternalLoginFailure, false, account.ID, err, reason("issue_failed"))
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.ExternalLoginSuccess)
	deps.EmitAudit(ctx, deps.Events.ExternalLoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"method": "external", "issuer": assertion.Issuer}
	})
	return LoginResult{Account: account, Tokens: pair}, nil
}

// RunReconcile maps a verified assertion onto a local account: an account
// already holding the external id wins, then an account with the same email
// gets the id linked, otherwise a password-less account is created under the
// first free username derived from the display name.
func RunReconcile(ctx context.Context, a identity.Assertion, deps ExternalDeps) (store.Account, error) {
	normalizeExternalDeps(&deps)

	if deps.AccountByExternalID == nil || deps.AccountByEmail == nil || deps.AccountByUsername == nil ||
		deps.UpdateExternalID == nil || deps.CreateAccount == nil || deps.Errors.OAuth == nil || deps.Errors.AlreadyExists == nil {
		return store.Account{}, deps.Errors.EngineNotReady
	}

	if !identity.TrustedIssuer(a.Issuer, deps.TrustedIssuers) {
		return store.Account{}, deps.Errors.OAuth("Invalid token issuer")
	}
	if a.Subject == "" {
		return store.Account{}, deps.Errors.OAuth("Missing subject in token")
	}
	email := NormalizeEmail(a.Email)
	if email == "" {
		return store.Account{}, deps.Errors.OAuth("Missing email in token")
	}

	account, err := deps.AccountByExternalID(ctx, a.Subject)
	switch {
	case err == nil:
		if !account.Active {
			return account, deps.Errors.InactiveUser
		}
		return account, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.Account{}, fmt.Errorf("lookup account by external id: %w", err)
	}

	existing, err := deps.AccountByEmail(ctx, email)
	switch {
	case err == nil:
		return linkExternal(ctx, existing, a, deps)
	case !errors.Is(err, store.ErrNotFound):
		return store.Account{}, fmt.Errorf("lookup account by email: %w", err)
	}

	return createExternal(ctx, email, a, deps)
}

func linkExternal(ctx context.Context, existing store.Account, a identity.Assertion, deps ExternalDeps) (store.Account, error) {
	if !existing.Active {
		return existing, deps.Errors.InactiveUser
	}

	linked, err := deps.UpdateExternalID(ctx, existing.ID, a.Subject)
	if err != nil {
		if field, ok := store.ConflictField(err); ok && field == store.FieldExternalID {
			// A concurrent login linked the same identity first.
			if winner, lookupErr := deps.AccountByExternalID(ctx, a.Subject); lookupErr == nil {
				return winner, nil
			}
		}
		return store.Account{}, fmt.Errorf("link external identity: %w", err)
	}

	deps.Logger.InfoContext(ctx, "external identity linked to existing account", slog.String("account_id", linked.ID))
	deps.MetricInc(deps.Metrics.ExternalLinked)
	deps.EmitAudit(ctx, deps.Events.ExternalLinked, true, linked.ID, nil, func() map[string]string {
		return map[string]string{"issuer": a.Issuer}
	})
	return linked, nil
}

func createExternal(ctx context.Context, email string, a identity.Assertion, deps ExternalDeps) (store.Account, error) {
	base := DeriveUsername(a.DisplayName())

	for i := 0; i <= deps.MaxUsernameProbes; i++ {
		candidate := base
		if i > 0 {
			candidate = base + "_" + strconv.Itoa(i)
		}

		if _, err := deps.AccountByUsername(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return store.Account{}, fmt.Errorf("lookup account by username: %w", err)
		}

		account, err := deps.CreateAccount(ctx, store.NewAccount{
			Email:      email,
			Username:   candidate,
			ExternalID: a.Subject,
		})
		if err != nil {
			field, ok := store.ConflictField(err)
			if ok && field == store.FieldUsername {
				continue
			}
			if ok {
				return store.Account{}, deps.Errors.AlreadyExists(field)
			}
			return store.Account{}, fmt.Errorf("create account: %w", err)
		}

		deps.Logger.InfoContext(ctx, "account created from external identity",
			slog.String("account_id", account.ID),
			slog.String("username", account.Username),
		)
		deps.MetricInc(deps.Metrics.ExternalCreated)
		deps.EmitAudit(ctx, deps.Events.ExternalCreated, true, account.ID, nil, func() map[string]string {
			return map[string]string{"issuer": a.Issuer, "username": account.Username}
		})
		return account, nil
	}

	deps.Logger.WarnContext(ctx, "username probing exhausted",
		slog.String("base", base),
		slog.Int("max_probes", deps.MaxUsernameProbes),
	)
	return store.Account{}, deps.Errors.UsernameUnavailable
}

// DeriveUsername lower-cases name and replaces spaces with underscores.
// An empty result falls back to "user".
func DeriveUsername(name string) string {
	u := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if u == "" {
		return "user"
	}
	return u
}

func normalizeExternalDeps(deps *ExternalDeps) {
	if len(deps.TrustedIssuers) == 0 {
		deps.TrustedIssuers = identity.GoogleIssuers
	}
	if deps.MaxUsernameProbes <= 0 {
		deps.MaxUsernameProbes = 100
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
