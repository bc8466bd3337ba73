package authcore

import (
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// Config defines the tunables of an Engine.
//
// Config values are copied by Builder.WithConfig; mutating the original after
// Build has no effect on the engine.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	Account       AccountConfig
	PasswordReset PasswordResetConfig
	Identity      IdentityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	RateLimit     RateLimitConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access and refresh token issuance.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // HMAC secret for hs256
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures hashing and the password length policy.
type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	BcryptCost int

	Memory      uint32 // argon2id, in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int

	// UpgradeOnLogin rehashes a stored hash after a successful login when it
	// was produced with an older algorithm or lower cost.
	UpgradeOnLogin bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig bounds usernames accepted at registration.
type AccountConfig struct {
	UsernameMinLength int
	UsernameMaxLength int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig configures reset token lifetime and the emailed link.
type PasswordResetConfig struct {
	ResetTTL time.Duration
	// ResetURLBase is the frontend page receiving the token as ?token=.
	ResetURLBase string
}

/*
====================================
IDENTITY CONFIG
====================================
*/

// IdentityConfig configures external identity reconciliation.
type IdentityConfig struct {
	GoogleClientID    string
	TrustedIssuers    []string
	MaxUsernameProbes int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sets per-client-IP budgets. Limits apply only when the
// builder is given a Redis client.
type RateLimitConfig struct {
	Enabled               bool
	Window                time.Duration
	RegisterPerWindow     int
	LoginPerWindow        int
	ResetRequestPerWindow int
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock configuration. JWT.PrivateKey is empty and
// must be set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Algorithm:      "bcrypt",
			BcryptCost:     12,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      100,
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			UsernameMinLength: 3,
			UsernameMaxLength: 50,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL:     15 * time.Minute,
			ResetURLBase: "http://localhost:3000/reset-password",
		},
		Identity: IdentityConfig{
			TrustedIssuers:    append([]string(nil), identity.GoogleIssuers...),
			MaxUsernameProbes: 100,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			Window:                time.Minute,
			RegisterPerWindow:     5,
			LoginPerWindow:        5,
			ResetRequestPerWindow: 3,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Identity.TrustedIssuers != nil {
		out.Identity.TrustedIssuers = append([]string(nil), cfg.Identity.TrustedIssuers...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 4 and 31")
		}
	case "argon2id":
		if c.Password.Memory < 8192 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be bcrypt or argon2id")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Account
	if c.Account.UsernameMinLength < 1 {
		return errors.New("Account UsernameMinLength must be >= 1")
	}
	if c.Account.UsernameMaxLength < c.Account.UsernameMinLength {
		return errors.New("Account UsernameMaxLength must be >= UsernameMinLength")
	}

	// PasswordReset
	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.ResetURLBase == "" {
		return errors.New("PasswordReset ResetURLBase is required")
	}
	if u, err := url.Parse(c.PasswordReset.ResetURLBase); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("PasswordReset ResetURLBase must be an absolute URL")
	}

	// Identity
	if len(c.Identity.TrustedIssuers) == 0 {
		return errors.New("Identity TrustedIssuers must not be empty")
	}
	if c.Identity.MaxUsernameProbes <= 0 {
		return errors.New("Identity MaxUsernameProbes must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// RateLimit
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		if c.RateLimit.RegisterPerWindow < 0 || c.RateLimit.LoginPerWindow < 0 || c.RateLimit.ResetRequestPerWindow < 0 {
			return errors.New("RateLimit budgets must be >= 0")
		}
	}

	return nil
}
