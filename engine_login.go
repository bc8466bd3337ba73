package authcore

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// Login describes the login operation and its observable behavior.
//
// Login authenticates identifier (tried as an email first, then as a
// username) with password and issues a token pair. Unknown identifiers,
// accounts without a password and wrong passwords all return
// ErrInvalidCredentials after the same amount of hashing work.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, password string) (TokenPair, error) {
	result, err := e.LoginWithResult(ctx, identifier, password)
	if err != nil {
		return TokenPair{}, err
	}
	return result.Tokens, nil
}

// LoginWithResult is Login that also returns the authenticated account.
func (e *Engine) LoginWithResult(ctx context.Context, identifier, password string) (LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return LoginResult{}, ErrEngineNotReady
	}
	defer e.observe(MetricLoginLatency, time.Now())

	res, err := e.flows.Login(ctx, identifier, password)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: res.Account, Tokens: fromFlowPair(res.Tokens)}, nil
}

// LoginExternal describes the loginexternal operation and its observable behavior.
//
// LoginExternal verifies an identity-provider token, links or creates the
// matching local account and issues a token pair. Verification problems
// return *OAuthError (matching ErrOAuth); a deactivated account returns
// ErrInactiveUser.
// LoginExternal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LoginExternal(ctx context.Context, idToken string) (TokenPair, error) {
	result, err := e.LoginExternalWithResult(ctx, idToken)
	if err != nil {
		return TokenPair{}, err
	}
	return result.Tokens, nil
}

// LoginExternalWithResult is LoginExternal that also returns the account.
func (e *Engine) LoginExternalWithResult(ctx context.Context, idToken string) (LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return LoginResult{}, ErrEngineNotReady
	}
	defer e.observe(MetricExternalLoginLatency, time.Now())

	res, err := e.flows.LoginExternal(ctx, idToken)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: res.Account, Tokens: fromFlowPair(res.Tokens)}, nil
}

// Reconcile maps an already verified assertion onto a local account without
// issuing tokens.
func (e *Engine) Reconcile(ctx context.Context, a Assertion) (Account, error) {
	if e == nil || !e.flows.Initialized() {
		return Account{}, ErrEngineNotReady
	}
	return e.flows.Reconcile(ctx, a)
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	return internalflows.LoginDeps{
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		DummyHash:           e.dummyHash,
		ClientIPFromContext: clientIPFromContext,
		CheckLimiter:        e.checkLimiter(limiters.ScopeLogin),
		MapLimiterError:     mapLimiterError,
		AccountByEmail:      e.accounts.AccountByEmail,
		AccountByUsername:   e.accounts.AccountByUsername,
		UpdatePasswordHash:  e.accounts.UpdatePasswordHash,
		VerifyPassword:      e.hasher.Verify,
		NeedsRehash:         e.hasher.NeedsRehash,
		HashPassword:        e.hasher.Hash,
		IssuePair:           e.issuePair,
		Logger:              e.logger,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordRehashed: int(MetricPasswordRehashed),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			InactiveUser:       ErrInactiveUser,
			RateLimited:        ErrRateLimited,
		},
	}
}

func (e *Engine) externalFlowDeps() internalflows.ExternalDeps {
	deps := internalflows.ExternalDeps{
		TrustedIssuers:      append([]string(nil), e.config.Identity.TrustedIssuers...),
		MaxUsernameProbes:   e.config.Identity.MaxUsernameProbes,
		AccountByExternalID: e.accounts.AccountByExternalID,
		AccountByEmail:      e.accounts.AccountByEmail,
		AccountByUsername:   e.accounts.AccountByUsername,
		UpdateExternalID:    e.accounts.UpdateExternalID,
		CreateAccount:       e.accounts.CreateAccount,
		IssuePair:           e.issuePair,
		Logger:              e.logger,
		MetricInc:           e.flowMetricInc,
		EmitAudit:           e.emitAudit,
		Metrics: internalflows.ExternalMetrics{
			ExternalLoginSuccess: int(MetricExternalLoginSuccess),
			ExternalLoginFailure: int(MetricExternalLoginFailure),
			ExternalLinked:       int(MetricExternalAccountLinked),
			ExternalCreated:      int(MetricExternalAccountCreated),
		},
		Events: internalflows.ExternalEvents{
			ExternalLoginSuccess: auditEventExternalLoginSuccess,
			ExternalLoginFailure: auditEventExternalLoginFailure,
			ExternalLinked:       auditEventExternalAccountLinked,
			ExternalCreated:      auditEventExternalAccountCreated,
		},
		Errors: internalflows.ExternalErrors{
			EngineNotReady:      ErrEngineNotReady,
			InactiveUser:        ErrInactiveUser,
			UsernameUnavailable: ErrUsernameUnavailable,
			OAuth:               oauthFailure,
			AlreadyExists:       alreadyExists,
		},
	}
	if e.verifier != nil {
		deps.VerifyAssertion = e.verifier.Verify
	}
	return deps
}
