package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset issues a single-use reset token for email and hands the
// reset link to the configured notifier. It returns nil whether or not an
// account exists, so callers cannot probe for registered emails. Only
// ErrRateLimited and ErrEngineNotReady are surfaced.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	defer e.observe(MetricPasswordResetRequestLatency, time.Now())

	return e.flows.RequestPasswordReset(ctx, email)
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset consumes token and replaces the account password.
// Unknown, expired and already used tokens all return ErrInvalidToken.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	defer e.observe(MetricPasswordResetConfirmLatency, time.Now())

	return e.flows.ConfirmPasswordReset(ctx, token, newPassword)
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	deps := internalflows.PasswordResetDeps{
		Policy:              e.credentialPolicy(),
		ResetTTL:            e.config.PasswordReset.ResetTTL,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		CheckRequestLimiter: e.checkLimiter(limiters.ScopeResetRequest),
		MapLimiterError:     mapLimiterError,
		AccountByEmail:      e.accounts.AccountByEmail,
		AccountByID:         e.accounts.AccountByID,
		UpdatePasswordHash:  e.accounts.UpdatePasswordHash,
		CreateResetToken:    e.resetTokens.CreateResetToken,
		ResetTokenByValue:   e.resetTokens.ResetTokenByValue,
		MarkResetTokenUsed:  e.resetTokens.MarkResetTokenUsed,
		GenerateToken:       internal.NewResetToken,
		ResetLink:           e.resetLink,
		Notify:              e.notifier.SendPasswordReset,
		HashPassword:        e.hasher.Hash,
		Logger:              e.logger,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetRateLimited:    int(MetricPasswordResetRateLimited),
			PasswordResetNotifyFailure:  int(MetricPasswordResetNotifyFailure),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			PasswordResetReplay:         int(MetricPasswordResetReplay),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			PasswordResetReplay:  auditEventPasswordResetReplay,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidToken:   ErrInvalidToken,
			UserNotFound:   ErrUserNotFound,
			PasswordPolicy: ErrPasswordPolicy,
			RateLimited:    ErrRateLimited,
		},
	}
	if e.transactor != nil {
		deps.InTx = e.transactor.InTx
	}
	return deps
}
