package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/authcore/store/memory"
)

func TestRegisterCreatesActivePasswordAccount(t *testing.T) {
	st := memory.New()
	engine := newTestEngine(t, st, testEngineOptions{})

	acc := mustRegister(t, engine, "  Alice@Example.COM ", "alice", "password123")

	if acc.ID == "" || !acc.Active {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if acc.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", acc.Email)
	}
	if acc.PasswordHash == "" || acc.PasswordHash == "password123" {
		t.Fatal("expected password to be stored hashed")
	}
	if !strings.HasPrefix(acc.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", acc.PasswordHash)
	}
}

func TestRegisterDuplicateFields(t *testing.T) {
	st := memory.New()
	engine := newTestEngine(t, st, testEngineOptions{})
	mustRegister(t, engine, "alice@example.com", "alice", "password123")

	cases := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"email", RegisterRequest{Email: "ALICE@example.com", Username: "other", Password: "password123"}, "email"},
		{"username", RegisterRequest{Email: "new@example.com", Username: "alice", Password: "password123"}, "username"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Register(context.Background(), tc.req)
			if !errors.Is(err, ErrUserAlreadyExists) {
				t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
			}
			var dup *UserAlreadyExistsError
			if !errors.As(err, &dup) || dup.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
			if want := "user with this " + tc.field + " already exists"; err.Error() != want {
				t.Fatalf("unexpected message %q", err.Error())
			}
		})
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	st := memory.New()
	engine := newTestEngine(t, st, testEngineOptions{})

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Username: "alice", Password: "password123"}, ErrInvalidInput},
		{"short username", RegisterRequest{Email: "a@example.com", Username: "al", Password: "password123"}, ErrInvalidInput},
		{"bad username chars", RegisterRequest{Email: "a@example.com", Username: "al ice", Password: "password123"}, ErrInvalidInput},
		{"short password", RegisterRequest{Email: "a@example.com", Username: "alice", Password: "short"}, ErrPasswordPolicy},
		{"long password", RegisterRequest{Email: "a@example.com", Username: "alice", Password: strings.Repeat("x", 101)}, ErrPasswordPolicy},
		{"bcrypt byte limit", RegisterRequest{Email: "a@example.com", Username: "alice", Password: strings.Repeat("é", 40)}, ErrPasswordPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Register(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterConcurrentSameEmailSingleWinner(t *testing.T) {
	st := memory.New()
	engine := newTestEngine(t, st, testEngineOptions{})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Register(context.Background(), RegisterRequest{
				Email:    "race@example.com",
				Username: "racer_" + string(rune('a'+i)),
				Password: "password123",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrUserAlreadyExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected one winner, got successes=%d conflicts=%d", successes, conflicts)
	}
}

func TestRegisterRateLimitedPerIP(t *testing.T) {
	_, rdb := newTestRedis(t)
	st := memory.New()
	cfg := testConfig()
	cfg.RateLimit.RegisterPerWindow = 2
	engine := newTestEngine(t, st, testEngineOptions{cfg: cfg, redis: rdb})

	ctx := WithClientIP(context.Background(), "10.0.0.1")
	for i, name := range []string{"user_one", "user_two"} {
		if _, err := engine.Register(ctx, RegisterRequest{Email: name + "@example.com", Username: name, Password: "password123"}); err != nil {
			t.Fatalf("Register %d failed: %v", i, err)
		}
	}
	_, err := engine.Register(ctx, RegisterRequest{Email: "three@example.com", Username: "user_three", Password: "password123"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	other := WithClientIP(context.Background(), "10.0.0.2")
	if _, err := engine.Register(other, RegisterRequest{Email: "three@example.com", Username: "user_three", Password: "password123"}); err != nil {
		t.Fatalf("other IP should not be limited: %v", err)
	}
}

func TestRegisterLimiterOutageFailsClosed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	st := memory.New()
	engine := newTestEngine(t, st, testEngineOptions{redis: rdb})
	mr.Close()

	ctx := WithClientIP(context.Background(), "10.0.0.1")
	_, err := engine.Register(ctx, RegisterRequest{Email: "a@example.com", Username: "alice", Password: "password123"})
	if !errors.Is(err, ErrRateLimiterUnavailable) {
		t.Fatalf("expected ErrRateLimiterUnavailable, got %v", err)
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var engine Engine
	ctx := context.Background()

	if _, err := engine.Register(ctx, RegisterRequest{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Register: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Login(ctx, "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Refresh(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Refresh: expected ErrEngineNotReady, got %v", err)
	}
	if err := engine.RequestPasswordReset(ctx, "a@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("RequestPasswordReset: expected ErrEngineNotReady, got %v", err)
	}
	if engine.Ready() {
		t.Fatal("zero engine must not report ready")
	}
}
