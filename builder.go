package authcore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	internalflows "github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can build exactly one Engine.
type Builder struct {
	config Config
	logger *slog.Logger
	redis  redis.UniversalClient
	now    func() time.Time

	accounts    store.AccountStore
	resetTokens store.ResetTokenStore
	transactor  store.Transactor

	notifier  Notifier
	verifier  IdentityVerifier
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the logger used for operational messages. The default
// discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithStore uses s for both accounts and reset tokens. When s implements
// store.Transactor, reset confirmation runs in one transaction.
func (b *Builder) WithStore(s Store) *Builder {
	b.accounts = s
	b.resetTokens = s
	b.transactor, _ = s.(store.Transactor)
	return b
}

// WithAccountStore sets the account backend on its own.
func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	b.transactor = nil
	return b
}

// WithResetTokenStore sets the reset token backend on its own. Reset
// confirmation then runs its two writes sequentially.
func (b *Builder) WithResetTokenStore(s ResetTokenStore) *Builder {
	b.resetTokens = s
	b.transactor = nil
	return b
}

// WithRedis enables per-IP rate limiting backed by client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNotifier sets reset email delivery. Without one, reset links are logged.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithIdentityVerifier enables LoginExternal.
func (b *Builder) WithIdentityVerifier(v IdentityVerifier) *Builder {
	b.verifier = v
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for reset token expiry and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.resetTokens == nil {
		return nil, errors.New("reset token store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- CREDENTIALS --------
	hasher, err := password.New(password.Config{
		Algorithm:  password.Algorithm(cfg.Password.Algorithm),
		BcryptCost: cfg.Password.BcryptCost,
		Argon2: password.Argon2Params{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
	})
	if err != nil {
		return nil, err
	}

	secret, err := internal.NewDummySecret()
	if err != nil {
		return nil, fmt.Errorf("dummy secret: %w", err)
	}
	dummyHash, err := hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- COLLABORATORS --------
	notifier := b.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}

	var limiter *limiters.IPLimiter
	if b.redis != nil && cfg.RateLimit.Enabled {
		limiter = limiters.NewIPLimiter(b.redis, limiters.Config{
			Window:          cfg.RateLimit.Window,
			RegisterMax:     cfg.RateLimit.RegisterPerWindow,
			LoginMax:        cfg.RateLimit.LoginPerWindow,
			ResetRequestMax: cfg.RateLimit.ResetRequestPerWindow,
		})
	}

	engine := &Engine{
		config:      cfg,
		logger:      logger,
		now:         now,
		accounts:    b.accounts,
		resetTokens: b.resetTokens,
		transactor:  b.transactor,
		notifier:    notifier,
		verifier:    b.verifier,
		hasher:      hasher,
		jwtManager:  jm,
		dummyHash:   dummyHash,
		limiter:     limiter,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.flows = internalflows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
