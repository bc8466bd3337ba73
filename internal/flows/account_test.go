package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
)

func TestRunRegisterCreatesAccount(t *testing.T) {
	st := memory.New()
	acc, err := RunRegister(context.Background(), RegisterInput{
		Email:    " Alice@Example.com ",
		Username: "alice",
		Password: "correct-horse",
	}, registerDeps(st))
	if err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}
	if acc.ID == "" || acc.Email != "alice@example.com" || acc.PasswordHash != "fake$correct-horse" {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if !acc.Active {
		t.Fatal("new account should be active")
	}
}

func TestRunRegisterDuplicateFields(t *testing.T) {
	st := memory.New()
	deps := registerDeps(st)
	ctx := context.Background()

	if _, err := RunRegister(ctx, RegisterInput{Email: "a@example.com", Username: "alice", Password: "password1"}, deps); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	_, err := RunRegister(ctx, RegisterInput{Email: "a@example.com", Username: "alice2", Password: "password1"}, deps)
	if got := existsField(err); got != store.FieldEmail {
		t.Fatalf("expected email conflict, got %v", err)
	}

	_, err = RunRegister(ctx, RegisterInput{Email: "b@example.com", Username: "alice", Password: "password1"}, deps)
	if got := existsField(err); got != store.FieldUsername {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestRunRegisterSurfacesStoreRaceAsConflict(t *testing.T) {
	st := memory.New()
	deps := registerDeps(st)
	deps.CreateAccount = func(context.Context, store.NewAccount) (store.Account, error) {
		return store.Account{}, &store.ConflictError{Field: store.FieldUsername}
	}

	_, err := RunRegister(context.Background(), RegisterInput{Email: "a@example.com", Username: "alice", Password: "password1"}, deps)
	if got := existsField(err); got != store.FieldUsername {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestRunRegisterPolicy(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"bad email", RegisterInput{Email: "nope", Username: "alice", Password: "password1"}, errInvalidInput},
		{"short username", RegisterInput{Email: "a@b.co", Username: "al", Password: "password1"}, errInvalidInput},
		{"username symbols", RegisterInput{Email: "a@b.co", Username: "al-ice", Password: "password1"}, errInvalidInput},
		{"short password", RegisterInput{Email: "a@b.co", Username: "alice", Password: "short"}, errPolicy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			_, err := RunRegister(context.Background(), tc.in, registerDeps(st))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRunRegisterRateLimited(t *testing.T) {
	st := memory.New()
	deps := registerDeps(st)
	var limited int
	deps.CheckLimiter = func(context.Context, string) error { return errRateLimited }
	deps.MetricInc = func(id int) {
		if id == 7 {
			limited++
		}
	}
	deps.Metrics.RegisterRateLimited = 7

	_, err := RunRegister(context.Background(), RegisterInput{Email: "a@b.co", Username: "alice", Password: "password1"}, deps)
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if limited != 1 {
		t.Fatalf("expected rate-limit metric once, got %d", limited)
	}
}

func TestRunRegisterNotReady(t *testing.T) {
	_, err := RunRegister(context.Background(), RegisterInput{}, RegisterDeps{Errors: RegisterErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestCredentialPolicyByteCap(t *testing.T) {
	p := DefaultCredentialPolicy()
	p.PasswordMaxBytes = 72
	// 40 runes, 80 bytes.
	pw := ""
	for i := 0; i < 40; i++ {
		pw += "é"
	}
	if err := p.CheckPassword(pw); err == nil {
		t.Fatal("expected byte cap violation")
	}
}
