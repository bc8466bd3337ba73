package authcore

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// Register describes the register operation and its observable behavior.
//
// Register creates a password account and returns it. It returns
// *UserAlreadyExistsError (matching ErrUserAlreadyExists) when the email or
// username is taken, including when a concurrent registration wins the race
// inside the store, and ErrInvalidInput or ErrPasswordPolicy for rejected input.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (Account, error) {
	if e == nil || !e.flows.Initialized() {
		return Account{}, ErrEngineNotReady
	}
	defer e.observe(MetricRegisterLatency, time.Now())

	return e.flows.Register(ctx, internalflows.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	return internalflows.RegisterDeps{
		Policy:              e.credentialPolicy(),
		ClientIPFromContext: clientIPFromContext,
		CheckLimiter:        e.checkLimiter(limiters.ScopeRegister),
		MapLimiterError:     mapLimiterError,
		AccountByEmail:      e.accounts.AccountByEmail,
		AccountByUsername:   e.accounts.AccountByUsername,
		CreateAccount:       e.accounts.CreateAccount,
		HashPassword:        e.hasher.Hash,
		Logger:              e.logger,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterFailure:     int(MetricRegisterFailure),
			RegisterRateLimited: int(MetricRegisterRateLimited),
		},
		Events: internalflows.RegisterEvents{
			RegisterSuccess: auditEventRegisterSuccess,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidInput:   ErrInvalidInput,
			PasswordPolicy: ErrPasswordPolicy,
			RateLimited:    ErrRateLimited,
			AlreadyExists:  alreadyExists,
		},
	}
}
