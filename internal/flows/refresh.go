package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/store"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	RefreshSuccess string
	RefreshFailure string
}

// RefreshErrors carries host-level sentinel errors used by the refresh flow.
type RefreshErrors struct {
	EngineNotReady error
	InvalidToken   error
	UserNotFound   error
	InactiveUser   error
}

// RefreshDeps supplies collaborators for RunRefresh.
type RefreshDeps struct {
	// VerifyRefresh returns the subject of a valid refresh token.
	VerifyRefresh func(token string) (string, error)
	AccountByID   func(context.Context, string) (store.Account, error)
	IssuePair     func(subject string) (TokenPair, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  RefreshErrors
}

// RunRefresh exchanges a refresh token for a new pair. Refresh tokens are not
// single-use: concurrent refreshes of the same token both succeed.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (TokenPair, error) {
	normalizeRefreshDeps(&deps)

	if deps.VerifyRefresh == nil || deps.AccountByID == nil || deps.IssuePair == nil {
		return TokenPair{}, deps.Errors.EngineNotReady
	}

	subject, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, "", deps.Errors.InvalidToken, reason("token_invalid"))
		return TokenPair{}, deps.Errors.InvalidToken
	}

	account, err := deps.AccountByID(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.MetricInc(deps.Metrics.RefreshFailure)
			deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, subject, deps.Errors.UserNotFound, reason("account_missing"))
			return TokenPair{}, deps.Errors.UserNotFound
		}
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, subject, err, reason("store_error"))
		return TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}
	if !account.Active {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, subject, deps.Errors.InactiveUser, reason("inactive"))
		return TokenPair{}, deps.Errors.InactiveUser
	}

	pair, err := deps.IssuePair(account.ID)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, subject, err, reason("issue_failed"))
		return TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, account.ID, nil, nil)
	return pair, nil
}

func normalizeRefreshDeps(deps *RefreshDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
