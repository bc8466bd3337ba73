package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// PasswordResetMetrics carries metric IDs needed by the password reset flows.
type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetRateLimited    int
	PasswordResetNotifyFailure  int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	PasswordResetReplay         int
}

// PasswordResetEvents carries audit event names used by the password reset flows.
type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
	PasswordResetReplay  string
}

// PasswordResetErrors carries host-level sentinel errors used by the password reset flows.
type PasswordResetErrors struct {
	EngineNotReady error
	InvalidToken   error
	UserNotFound   error
	PasswordPolicy error
	RateLimited    error
}

// PasswordResetDeps supplies collaborators for the reset request and confirm flows.
type PasswordResetDeps struct {
	Policy   CredentialPolicy
	ResetTTL time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	// CheckRequestLimiter is optional; nil disables rate limiting.
	CheckRequestLimiter func(ctx context.Context, key string) error
	MapLimiterError     func(error) error

	AccountByEmail     func(context.Context, string) (store.Account, error)
	AccountByID        func(context.Context, string) (store.Account, error)
	UpdatePasswordHash func(context.Context, string, string) error

	CreateResetToken   func(context.Context, string, string, time.Time) (store.ResetToken, error)
	ResetTokenByValue  func(context.Context, string) (store.ResetToken, error)
	MarkResetTokenUsed func(context.Context, string) error
	// InTx is optional. When set, marking the token used and updating the
	// password commit together.
	InTx func(context.Context, store.TxFunc) error

	GenerateToken func() (string, error)
	ResetLink     func(token string) string
	Notify        func(ctx context.Context, email, link string) error
	HashPassword  func(string) (string, error)

	Logger    *slog.Logger
	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset issues a reset token for email when an account
// exists and hands the link to the notifier. The result is the same whether or
// not the account exists; only rate limiting and missing wiring are surfaced.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.AccountByEmail == nil || deps.CreateResetToken == nil || deps.GenerateToken == nil || deps.ResetLink == nil || deps.Notify == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
			mapped := deps.MapLimiterError(err)
			if errors.Is(mapped, deps.Errors.RateLimited) {
				deps.MetricInc(deps.Metrics.PasswordResetRateLimited)
				deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", mapped, reason("rate_limited"))
				return mapped
			}
			// A broken limiter must not turn into an enumeration signal.
			deps.Logger.WarnContext(ctx, "reset request limiter unavailable", slog.Any("error", err))
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	account, err := deps.AccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			deps.Logger.ErrorContext(ctx, "reset request account lookup failed", slog.Any("error", err))
		}
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{"enumeration_safe": "true"}
		})
		return nil
	}

	token, err := deps.GenerateToken()
	if err != nil {
		deps.Logger.ErrorContext(ctx, "reset token generation failed", slog.String("account_id", account.ID), slog.Any("error", err))
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, account.ID, err, reason("generate_failed"))
		return nil
	}

	expiresAt := deps.Now().Add(deps.ResetTTL)
	if _, err := deps.CreateResetToken(ctx, account.ID, token, expiresAt); err != nil {
		deps.Logger.ErrorContext(ctx, "reset token not persisted", slog.String("account_id", account.ID), slog.Any("error", err))
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, account.ID, err, reason("store_error"))
		return nil
	}

	link := deps.ResetLink(token)
	if err := deps.Notify(ctx, account.Email, link); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetNotifyFailure)
		deps.Logger.WarnContext(ctx, "reset email not delivered",
			slog.String("account_id", account.ID),
			slog.String("reset_link", link),
			slog.Any("error", err),
		)
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, account.ID, nil, nil)
	return nil
}

// RunConfirmPasswordReset consumes a reset token and sets a new password.
// Unknown, used and expired tokens all return InvalidToken; the cause is only
// logged.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.ResetTokenByValue == nil || deps.AccountByID == nil || deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}
	if deps.InTx == nil && (deps.UpdatePasswordHash == nil || deps.MarkResetTokenUsed == nil) {
		return deps.Errors.EngineNotReady
	}

	fail := func(err error, userID, why string) error {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, userID, err, reason(why))
		return err
	}

	if err := deps.Policy.CheckPassword(newPassword); err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err), "", "password_policy")
	}
	if token == "" {
		return fail(deps.Errors.InvalidToken, "", "empty_token")
	}

	record, err := deps.ResetTokenByValue(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.Logger.InfoContext(ctx, "Invalid reset token")
			return fail(deps.Errors.InvalidToken, "", "not_found")
		}
		return fail(fmt.Errorf("lookup reset token: %w", err), "", "store_error")
	}
	if record.Used {
		deps.Logger.InfoContext(ctx, "Reset token has already been used", slog.String("token_id", record.ID))
		deps.MetricInc(deps.Metrics.PasswordResetReplay)
		deps.EmitAudit(ctx, deps.Events.PasswordResetReplay, false, record.AccountID, deps.Errors.InvalidToken, nil)
		return fail(deps.Errors.InvalidToken, record.AccountID, "used")
	}
	if record.Expired(deps.Now()) {
		deps.Logger.InfoContext(ctx, "Reset token has expired", slog.String("token_id", record.ID))
		return fail(deps.Errors.InvalidToken, record.AccountID, "expired")
	}

	account, err := deps.AccountByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(deps.Errors.UserNotFound, record.AccountID, "account_missing")
		}
		return fail(fmt.Errorf("lookup account: %w", err), record.AccountID, "store_error")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err), account.ID, "hash_failed")
	}

	// Marking first turns a concurrent second confirm into a conditional-update
	// miss instead of a second password change.
	marked := false
	apply := func(ctx context.Context, mark func(context.Context, string) error, update func(context.Context, string, string) error) error {
		if err := mark(ctx, record.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.InvalidToken
			}
			return fmt.Errorf("mark reset token used: %w", err)
		}
		marked = true
		if err := update(ctx, account.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		return nil
	}

	if deps.InTx != nil {
		err = deps.InTx(ctx, func(ctx context.Context, accounts store.AccountStore, tokens store.ResetTokenStore) error {
			return apply(ctx, tokens.MarkResetTokenUsed, accounts.UpdatePasswordHash)
		})
	} else {
		err = apply(ctx, deps.MarkResetTokenUsed, deps.UpdatePasswordHash)
		if err != nil && marked {
			deps.Logger.ErrorContext(ctx, "reset confirm not atomic: token consumed but password unchanged",
				slog.String("account_id", account.ID),
				slog.String("token_id", record.ID),
				slog.Any("error", err),
			)
		}
	}
	if err != nil {
		if errors.Is(err, deps.Errors.InvalidToken) {
			deps.Logger.InfoContext(ctx, "Reset token has already been used", slog.String("token_id", record.ID))
			deps.MetricInc(deps.Metrics.PasswordResetReplay)
			return fail(deps.Errors.InvalidToken, account.ID, "used")
		}
		return fail(err, account.ID, "store_error")
	}

	deps.Logger.InfoContext(ctx, "password reset confirmed", slog.String("account_id", account.ID))
	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, account.ID, nil, nil)
	return nil
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = 15 * time.Minute
	}
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
