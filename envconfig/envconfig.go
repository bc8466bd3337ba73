// Package envconfig loads service settings from the environment.
//
// Variables are read with caarlos0/env; a .env file is merged first when one
// is named. The result maps onto authcore.Config and the notifier configs.
package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/notify"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings mirrors the service environment.
type Settings struct {
	AppName  string `env:"APP_NAME" envDefault:"Auth Service"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// CORSOrigins is a comma list, or "*" for any origin.
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	// ResetTokenStore is "database" or "redis". Redis requires REDIS_URL.
	ResetTokenStore string `env:"RESET_TOKEN_STORE" envDefault:"database"`

	JWTSecretKey             string `env:"JWT_SECRET_KEY"`
	JWTAlgorithm             string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTIssuer                string `env:"JWT_ISSUER"`
	JWTAudience              string `env:"JWT_AUDIENCE"`
	AccessTokenExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTokenExpireDays   int    `env:"REFRESH_TOKEN_EXPIRE_DAYS" envDefault:"7"`

	BcryptRounds            int    `env:"BCRYPT_ROUNDS" envDefault:"12"`
	ResetTokenExpireMinutes int    `env:"RESET_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	FrontendURL             string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	SMTPHost      string        `env:"SMTP_HOST" envDefault:"smtp.zoho.com"`
	SMTPPort      int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string        `env:"SMTP_USER"`
	SMTPPassword  string        `env:"SMTP_PASSWORD"`
	SMTPFromEmail string        `env:"SMTP_FROM_EMAIL"`
	SMTPTimeout   time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`

	MailtrapAPIKey    string `env:"MAILTRAP_API_KEY"`
	MailtrapAPIURL    string `env:"MAILTRAP_API_URL"`
	MailtrapFromEmail string `env:"MAILTRAP_FROM_EMAIL"`
	MailtrapFromName  string `env:"MAILTRAP_FROM_NAME"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AuditEnabled     bool `env:"AUDIT_ENABLED" envDefault:"false"`
	MetricsEnabled   bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load parses the environment. Each file in dotenv is loaded first without
// overriding variables that are already set; missing files are an error.
func Load(dotenv ...string) (Settings, error) {
	if len(dotenv) > 0 {
		if err := godotenv.Load(dotenv...); err != nil {
			return Settings{}, fmt.Errorf("load dotenv: %w", err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// EngineConfig maps the settings onto an engine configuration. The result is
// not validated; Builder.Build does that.
func (s Settings) EngineConfig() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	switch strings.ToUpper(strings.TrimSpace(s.JWTAlgorithm)) {
	case "", "HS256":
		cfg.JWT.SigningMethod = "hs256"
	default:
		return authcore.Config{}, fmt.Errorf("JWT_ALGORITHM %q is not supported", s.JWTAlgorithm)
	}
	if s.JWTSecretKey != "" {
		cfg.JWT.PrivateKey = []byte(s.JWTSecretKey)
	}
	cfg.JWT.Issuer = s.JWTIssuer
	cfg.JWT.Audience = s.JWTAudience
	cfg.JWT.AccessTTL = time.Duration(s.AccessTokenExpireMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(s.RefreshTokenExpireDays) * 24 * time.Hour

	cfg.Password.BcryptCost = s.BcryptRounds

	cfg.PasswordReset.ResetTTL = time.Duration(s.ResetTokenExpireMinutes) * time.Minute
	cfg.PasswordReset.ResetURLBase = s.ResetURLBase()

	cfg.Identity.GoogleClientID = s.GoogleClientID

	cfg.RateLimit.Enabled = s.RateLimitEnabled
	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled

	return cfg, nil
}

// ResetURLBase is the frontend page that receives reset tokens.
func (s Settings) ResetURLBase() string {
	return strings.TrimRight(s.FrontendURL, "/") + "/reset-password"
}

// SMTP returns the SMTP notifier settings.
func (s Settings) SMTP() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUser,
		Password: s.SMTPPassword,
		From:     s.SMTPFromEmail,
		ResetTTL: time.Duration(s.ResetTokenExpireMinutes) * time.Minute,
		Timeout:  s.SMTPTimeout,
	}
}

// Mailtrap returns the Mailtrap notifier settings.
func (s Settings) Mailtrap() notify.MailtrapConfig {
	return notify.MailtrapConfig{
		APIURL:    s.MailtrapAPIURL,
		APIKey:    s.MailtrapAPIKey,
		FromEmail: s.MailtrapFromEmail,
		FromName:  s.MailtrapFromName,
		ResetTTL:  time.Duration(s.ResetTokenExpireMinutes) * time.Minute,
	}
}

// Notifier picks Mailtrap when an API key is set, then SMTP when fully
// configured. It returns nil when neither is, leaving the engine to log
// reset links.
func (s Settings) Notifier() notify.Notifier {
	switch {
	case s.MailtrapAPIKey != "" && s.MailtrapFromEmail != "":
		return notify.NewMailtrapNotifier(s.Mailtrap())
	case s.SMTP().Configured():
		return notify.NewSMTPNotifier(s.SMTP())
	default:
		return nil
	}
}

// StoreDriver resolves the storage backend: an explicit DATABASE_DRIVER wins,
// otherwise the DATABASE_URL scheme decides and an empty URL selects memory.
func (s Settings) StoreDriver() (string, error) {
	if d := strings.ToLower(strings.TrimSpace(s.DatabaseDriver)); d != "" {
		switch d {
		case "memory", "postgres", "sqlite":
			return d, nil
		default:
			return "", fmt.Errorf("DATABASE_DRIVER %q is not supported", s.DatabaseDriver)
		}
	}

	url := strings.TrimSpace(s.DatabaseURL)
	switch {
	case url == "":
		return "memory", nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(url, "file:"), strings.HasPrefix(url, "sqlite:"), strings.HasSuffix(url, ".db"):
		return "sqlite", nil
	default:
		return "", errors.New("cannot infer DATABASE_DRIVER from DATABASE_URL")
	}
}

// ResetTokensInRedis reports whether reset tokens live in Redis rather than
// the account database.
func (s Settings) ResetTokensInRedis() (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s.ResetTokenStore)) {
	case "", "database":
		return false, nil
	case "redis":
		if s.RedisURL == "" {
			return false, errors.New("RESET_TOKEN_STORE=redis requires REDIS_URL")
		}
		return true, nil
	default:
		return false, fmt.Errorf("RESET_TOKEN_STORE %q is not supported", s.ResetTokenStore)
	}
}

// AllowAllOrigins reports whether CORS is open to every origin.
func (s Settings) AllowAllOrigins() bool {
	for _, o := range s.CORSOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return len(s.CORSOrigins) == 0
}

// Origins returns the trimmed, non-empty CORS origins.
func (s Settings) Origins() []string {
	out := make([]string, 0, len(s.CORSOrigins))
	for _, o := range s.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel parses LOG_LEVEL, falling back to info.
func (s Settings) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
