package authcore

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding about a valid but questionable configuration.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of findings returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(min) {
		errs = append(errs, errors.New(w.Severity.String()+" "+w.Code+": "+w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c Config) Lint() LintResult {
	var out LintResult
	add := func(code string, sev LintSeverity, msg string) {
		out = append(out, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked; keep AccessTTL at or below 15m")
	}
	if c.JWT.RefreshTTL > 7*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens are not rotated; keep RefreshTTL at or below 7d")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1m extends every token lifetime")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 shares the signing secret with every verifier")
		if len(c.JWT.PrivateKey) < 32 {
			add("hs256_key_short", LintHigh, "hs256 secret shorter than 256 bits")
		}
	}

	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost < 10 {
			add("bcrypt_cost_low", LintHigh, "bcrypt cost below 10")
		}
	case "argon2id":
		if c.Password.Memory < 64*1024 {
			add("argon2_memory_low", LintWarn, "argon2id memory below 64 MB")
		}
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", LintWarn, "password minimum length below 8")
	}

	if c.PasswordReset.ResetTTL > time.Hour {
		add("reset_ttl_long", LintWarn, "reset tokens valid for more than 1h")
	}
	if u, err := url.Parse(c.PasswordReset.ResetURLBase); err == nil && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		add("reset_link_insecure", LintHigh, "reset links sent over plain http")
	}

	if c.Identity.GoogleClientID == "" {
		add("identity_client_missing", LintInfo, "no Google client id; external login is disabled unless a verifier is supplied")
	}

	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintWarn, "register, login and reset request are not throttled")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	}

	return out
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
