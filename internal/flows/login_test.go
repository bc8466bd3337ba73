package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
)

func TestRunLoginByEmailAndUsername(t *testing.T) {
	st := memory.New()
	acc := seedPasswordAccount(st, "alice@example.com", "alice", "password1")

	for _, ident := range []string{"alice@example.com", "ALICE@example.com", "alice"} {
		res, err := RunLogin(context.Background(), ident, "password1", loginDeps(st))
		if err != nil {
			t.Fatalf("RunLogin(%q) failed: %v", ident, err)
		}
		if res.Account.ID != acc.ID || res.Tokens.AccessToken != "access:"+acc.ID {
			t.Fatalf("unexpected result for %q: %+v", ident, res)
		}
	}
}

func TestRunLoginEmailTakesPriority(t *testing.T) {
	st := memory.New()
	byEmail := seedPasswordAccount(st, "bob@example.com", "bob", "password1")
	seedPasswordAccount(st, "other@example.com", "bob_example", "password2")

	res, err := RunLogin(context.Background(), "bob@example.com", "password1", loginDeps(st))
	if err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	if res.Account.ID != byEmail.ID {
		t.Fatalf("expected email match to win")
	}
}

func TestRunLoginInvalidCredentials(t *testing.T) {
	st := memory.New()
	seedPasswordAccount(st, "alice@example.com", "alice", "password1")
	if _, err := st.CreateAccount(context.Background(), store.NewAccount{Email: "g@example.com", Username: "gina", ExternalID: "sub-1"}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	deps := loginDeps(st)
	var dummyChecks int
	verify := deps.VerifyPassword
	deps.VerifyPassword = func(pw, encoded string) bool {
		if encoded == deps.DummyHash {
			dummyChecks++
		}
		return verify(pw, encoded)
	}

	cases := []struct{ ident, pw string }{
		{"alice", "wrong-password"},
		{"nobody@example.com", "password1"},
		{"gina", "password1"},
	}
	for _, c := range cases {
		if _, err := RunLogin(context.Background(), c.ident, c.pw, deps); !errors.Is(err, errInvalidCredentials) {
			t.Fatalf("RunLogin(%q) expected invalid credentials, got %v", c.ident, err)
		}
	}
	if dummyChecks != 2 {
		t.Fatalf("expected dummy verification for unknown and password-less accounts, got %d", dummyChecks)
	}
}

func TestRunLoginInactive(t *testing.T) {
	st := memory.New()
	acc := seedPasswordAccount(st, "alice@example.com", "alice", "password1")
	if err := st.SetActive(context.Background(), acc.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	if _, err := RunLogin(context.Background(), "alice", "password1", loginDeps(st)); !errors.Is(err, errInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	if _, err := RunLogin(context.Background(), "alice", "bad-password", loginDeps(st)); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
}

func TestRunLoginUpgradesOutdatedHash(t *testing.T) {
	st := memory.New()
	acc := seedPasswordAccount(st, "alice@example.com", "alice", "password1")

	deps := loginDeps(st)
	deps.UpgradeOnLogin = true
	deps.NeedsRehash = func(string) bool { return true }
	deps.VerifyPassword = func(pw, encoded string) bool { return encoded == "fake$"+pw || encoded == "new$"+pw }
	deps.HashPassword = func(pw string) (string, error) { return "new$" + pw, nil }

	if _, err := RunLogin(context.Background(), "alice", "password1", deps); err != nil {
		t.Fatalf("RunLogin failed: %v", err)
	}
	got, _ := st.AccountByID(context.Background(), acc.ID)
	if got.PasswordHash != "new$password1" {
		t.Fatalf("expected rehashed password, got %q", got.PasswordHash)
	}
}

func TestRunLoginRehashFailureDoesNotFailLogin(t *testing.T) {
	st := memory.New()
	seedPasswordAccount(st, "alice@example.com", "alice", "password1")

	deps := loginDeps(st)
	deps.UpgradeOnLogin = true
	deps.NeedsRehash = func(string) bool { return true }
	deps.UpdatePasswordHash = func(context.Context, string, string) error { return errors.New("db down") }

	if _, err := RunLogin(context.Background(), "alice", "password1", deps); err != nil {
		t.Fatalf("RunLogin should succeed despite rehash failure: %v", err)
	}
}

func TestRunLoginRateLimited(t *testing.T) {
	st := memory.New()
	deps := loginDeps(st)
	deps.CheckLimiter = func(context.Context, string) error { return errRateLimited }

	if _, err := RunLogin(context.Background(), "alice", "password1", deps); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}
