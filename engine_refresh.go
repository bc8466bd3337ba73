package authcore

import (
	"context"
	"errors"
	"time"

	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh exchanges a valid refresh token for a new token pair after checking
// that the subject still exists and is active. Refresh tokens are not
// single-use; presenting an access token returns ErrInvalidToken.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return TokenPair{}, ErrEngineNotReady
	}
	defer e.observe(MetricRefreshLatency, time.Now())

	pair, err := e.flows.Refresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	return fromFlowPair(pair), nil
}

// ValidateAccess returns the account id carried by a valid access token.
// It does not touch the store.
func (e *Engine) ValidateAccess(accessToken string) (string, error) {
	if e == nil || !e.flows.Initialized() {
		return "", ErrEngineNotReady
	}
	defer e.observe(MetricValidateLatency, time.Now())

	return e.flows.ValidateAccess(accessToken)
}

// CurrentAccount validates accessToken and loads its account. Deleted
// accounts return ErrUserNotFound and deactivated ones ErrInactiveUser.
func (e *Engine) CurrentAccount(ctx context.Context, accessToken string) (Account, error) {
	id, err := e.ValidateAccess(accessToken)
	if err != nil {
		return Account{}, err
	}
	account, err := e.accounts.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Account{}, ErrUserNotFound
		}
		return Account{}, err
	}
	if !account.Active {
		return Account{}, ErrInactiveUser
	}
	return account, nil
}

func (e *Engine) refreshFlowDeps() internalflows.RefreshDeps {
	return internalflows.RefreshDeps{
		VerifyRefresh: func(token string) (string, error) {
			return e.jwtManager.Verify(token, jwt.KindRefresh)
		},
		AccountByID: e.accounts.AccountByID,
		IssuePair:   e.issuePair,
		MetricInc:   e.flowMetricInc,
		EmitAudit:   e.emitAudit,
		Metrics: internalflows.RefreshMetrics{
			RefreshSuccess: int(MetricRefreshSuccess),
			RefreshFailure: int(MetricRefreshFailure),
		},
		Events: internalflows.RefreshEvents{
			RefreshSuccess: auditEventRefreshSuccess,
			RefreshFailure: auditEventRefreshFailure,
		},
		Errors: internalflows.RefreshErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidToken:   ErrInvalidToken,
			UserNotFound:   ErrUserNotFound,
			InactiveUser:   ErrInactiveUser,
		},
	}
}

func (e *Engine) validateFlowDeps() internalflows.ValidateDeps {
	return internalflows.ValidateDeps{
		VerifyAccess: func(token string) (string, error) {
			return e.jwtManager.Verify(token, jwt.KindAccess)
		},
		MetricInc: e.flowMetricInc,
		Metrics: internalflows.ValidateMetrics{
			ValidateSuccess: int(MetricValidateSuccess),
			ValidateFailure: int(MetricValidateFailure),
		},
		Errors: internalflows.ValidateErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidToken:   ErrInvalidToken,
		},
	}
}
