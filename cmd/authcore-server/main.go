// Command authcore-server serves the authentication API over HTTP.
//
// Configuration comes from the environment (and a .env file in the working
// directory when present). See package envconfig for the variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/envconfig"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/identity"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/redisreset"
	"github.com/MrEthical07/authcore/store/sqlstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("application startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := envconfig.Load()
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: settings.SlogLevel()}))
	slog.SetDefault(logger)

	cfg, err := settings.EngineConfig()
	if err != nil {
		return err
	}

	b := authcore.New().WithConfig(cfg).WithLogger(logger)
	if cfg.Audit.Enabled {
		b.WithAuditSink(authcore.NewSlogSink(logger.With("component", "audit")))
	}

	// -------- STORAGE --------
	closeStore, err := configureStore(ctx, b, settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// -------- COLLABORATORS --------
	if n := settings.Notifier(); n != nil {
		b.WithNotifier(n)
	} else {
		logger.Warn("no mail transport configured, reset links will be logged")
	}

	if settings.GoogleClientID != "" {
		verifier, err := identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			ClientID:       settings.GoogleClientID,
			TrustedIssuers: cfg.Identity.TrustedIssuers,
		})
		if err != nil {
			return fmt.Errorf("google verifier: %w", err)
		}
		b.WithIdentityVerifier(verifier)
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		AppName:        settings.AppName,
		AllowedOrigins: settings.Origins(),
		Logger:         logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promexport.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, opts),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		logger.Info("server starting",
			"addr", srv.Addr,
			"google_login", engine.ExternalLoginEnabled(),
			"metrics", cfg.Metrics.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen and serve", "error", err)
			stop()
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	wg.Wait()
	return nil
}

// configureStore wires the account and reset token backends plus the rate
// limiter Redis into b. The returned func releases the connections.
func configureStore(ctx context.Context, b *authcore.Builder, s envconfig.Settings, logger *slog.Logger) (func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var rdb *redis.Client
	if s.RedisURL != "" {
		opt, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		closers = append(closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b.WithRedis(rdb)
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
	}

	driver, err := s.StoreDriver()
	if err != nil {
		closeAll()
		return nil, err
	}

	var st authcore.Store
	switch driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		st = memory.New()
	default:
		dialect, err := sqlstore.ParseDialect(driver)
		if err != nil {
			closeAll()
			return nil, err
		}
		sqlStore, err := sqlstore.Open(ctx, dialect, s.DatabaseURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = sqlStore.Close() })
		st = sqlStore
	}

	inRedis, err := s.ResetTokensInRedis()
	if err != nil {
		closeAll()
		return nil, err
	}
	if inRedis {
		b.WithAccountStore(st)
		b.WithResetTokenStore(redisreset.New(rdb, redisreset.Config{}))
	} else {
		b.WithStore(st)
	}

	logger.Info("storage configured", "driver", driver, "reset_tokens_in_redis", inRedis)
	return closeAll, nil
}
