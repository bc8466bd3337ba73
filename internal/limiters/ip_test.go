package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *IPLimiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, NewIPLimiter(rdb, cfg)
}

func TestIPLimiterPerScopeBudgets(t *testing.T) {
	_, l := newLimiter(t, Config{Window: time.Minute, RegisterMax: 5, LoginMax: 5, ResetRequestMax: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, ScopeResetRequest, "10.0.0.1"); err != nil {
			t.Fatalf("reset request %d: %v", i+1, err)
		}
	}
	if err := l.Check(ctx, ScopeResetRequest, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 4th reset request, got %v", err)
	}

	// login budget is separate from reset budget
	for i := 0; i < 5; i++ {
		if err := l.Check(ctx, ScopeLogin, "10.0.0.1"); err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
	}
	if err := l.Check(ctx, ScopeLogin, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected login limit, got %v", err)
	}
}

func TestIPLimiterSkipsEmptyIPAndDisabledScope(t *testing.T) {
	_, l := newLimiter(t, Config{LoginMax: 1})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.Check(ctx, ScopeLogin, ""); err != nil {
			t.Fatalf("empty ip should not be limited: %v", err)
		}
		if err := l.Check(ctx, ScopeRegister, "10.0.0.2"); err != nil {
			t.Fatalf("disabled scope should not be limited: %v", err)
		}
	}
	if l.Enabled(ScopeRegister) || !l.Enabled(ScopeLogin) {
		t.Fatal("unexpected Enabled result")
	}
}

func TestIPLimiterNilAllows(t *testing.T) {
	var l *IPLimiter
	if err := l.Check(context.Background(), ScopeLogin, "10.0.0.3"); err != nil {
		t.Fatalf("nil limiter should allow: %v", err)
	}
}

func TestIPLimiterRedisDown(t *testing.T) {
	mr, l := newLimiter(t, Config{LoginMax: 5})
	mr.Close()

	err := l.Check(context.Background(), ScopeLogin, "10.0.0.4")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatal("outage must not look like a limit")
	}
}
