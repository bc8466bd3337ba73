package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testSigningKey...)
	cfg.Password.BcryptCost = 4
	return cfg
}

type testEngineOptions struct {
	cfg      Config
	redis    *redis.Client
	notifier Notifier
	verifier IdentityVerifier
	sink     AuditSink
	now      func() time.Time
}

func newTestEngine(t *testing.T, st *memory.Store, opts testEngineOptions) *Engine {
	t.Helper()

	cfg := opts.cfg
	if cfg.JWT.AccessTTL == 0 {
		cfg = testConfig()
	}

	b := New().WithConfig(cfg).WithStore(st)
	if opts.redis != nil {
		b.WithRedis(opts.redis)
	}
	if opts.notifier != nil {
		b.WithNotifier(opts.notifier)
	}
	if opts.verifier != nil {
		b.WithIdentityVerifier(opts.verifier)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}
	if opts.now != nil {
		b.WithClock(opts.now)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func mustRegister(t *testing.T, e *Engine, email, username, password string) Account {
	t.Helper()

	acc, err := e.Register(context.Background(), RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return acc
}

// captureNotifier records reset links instead of sending mail.
type captureNotifier struct {
	ch chan string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan string, 16)}
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, _ string, link string) error {
	n.ch <- link
	return nil
}

func (n *captureNotifier) next(t *testing.T) string {
	t.Helper()
	select {
	case link := <-n.ch:
		return link
	default:
		t.Fatal("expected a reset link to be sent")
		return ""
	}
}
