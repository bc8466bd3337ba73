package authcore

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
)

// Engine runs the credential lifecycle operations. Build it with [Builder];
// all methods are safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	accounts    store.AccountStore
	resetTokens store.ResetTokenStore
	transactor  store.Transactor

	notifier   Notifier
	verifier   IdentityVerifier
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	dummyHash  string
	limiter    *limiters.IPLimiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	flows internalflows.Service
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ready reports whether the engine was assembled by a Builder.
func (e *Engine) Ready() bool {
	return e != nil && e.flows.Initialized()
}

// ExternalLoginEnabled reports whether an identity verifier is wired.
func (e *Engine) ExternalLoginEnabled() bool {
	return e != nil && e.verifier != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) flowDeps() internalflows.Deps {
	return internalflows.Deps{
		Register:      e.registerFlowDeps(),
		Login:         e.loginFlowDeps(),
		External:      e.externalFlowDeps(),
		Refresh:       e.refreshFlowDeps(),
		Validate:      e.validateFlowDeps(),
		PasswordReset: e.passwordResetFlowDeps(),
	}
}

func (e *Engine) credentialPolicy() internalflows.CredentialPolicy {
	return internalflows.CredentialPolicy{
		UsernameMin:      e.config.Account.UsernameMinLength,
		UsernameMax:      e.config.Account.UsernameMaxLength,
		PasswordMin:      e.config.Password.MinLength,
		PasswordMax:      e.config.Password.MaxLength,
		PasswordMaxBytes: e.hasher.MaxPasswordBytes(),
	}
}

func (e *Engine) issuePair(subject string) (internalflows.TokenPair, error) {
	access, err := e.jwtManager.IssueAccess(subject)
	if err != nil {
		return internalflows.TokenPair{}, err
	}
	refresh, err := e.jwtManager.IssueRefresh(subject)
	if err != nil {
		return internalflows.TokenPair{}, err
	}
	return internalflows.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// checkLimiter returns nil when rate limiting is off, which flows treat as
// "no limiter".
func (e *Engine) checkLimiter(scope limiters.Scope) func(context.Context, string) error {
	if e.limiter == nil || !e.limiter.Enabled(scope) {
		return nil
	}
	return func(ctx context.Context, ip string) error {
		return e.limiter.Check(ctx, scope, ip)
	}
}

func mapLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrRateLimited):
		return ErrRateLimited
	default:
		return errors.Join(ErrRateLimiterUnavailable, err)
	}
}

func (e *Engine) resetLink(token string) string {
	base := e.config.PasswordReset.ResetURLBase
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func fromFlowPair(p internalflows.TokenPair) TokenPair {
	return TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
