package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
)

func googleAssertion(sub, email, name string) identity.Assertion {
	return identity.Assertion{
		Issuer:        "https://accounts.google.com",
		Subject:       sub,
		Email:         email,
		EmailVerified: true,
		Name:          name,
	}
}

func TestRunReconcileLinksExistingEmailOnce(t *testing.T) {
	st := memory.New()
	local := seedPasswordAccount(st, "alice@example.com", "alice", "password1")

	deps := externalDeps(st)
	var links int
	update := deps.UpdateExternalID
	deps.UpdateExternalID = func(ctx context.Context, id, ext string) (store.Account, error) {
		links++
		return update(ctx, id, ext)
	}

	a := googleAssertion("g-1", "Alice@Example.com", "Alice")
	first, err := RunReconcile(context.Background(), a, deps)
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	second, err := RunReconcile(context.Background(), a, deps)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	if first.ID != local.ID || second.ID != local.ID {
		t.Fatalf("expected both logins to resolve to %s, got %s and %s", local.ID, first.ID, second.ID)
	}
	if first.ExternalID != "g-1" || first.PasswordHash != local.PasswordHash {
		t.Fatalf("link must set external id and keep password: %+v", first)
	}
	if links != 1 {
		t.Fatalf("expected exactly one link, got %d", links)
	}
}

func TestRunReconcileUsernameCollision(t *testing.T) {
	st := memory.New()
	seedPasswordAccount(st, "a1@example.com", "alice", "password1")
	seedPasswordAccount(st, "a2@example.com", "alice_1", "password1")

	acc, err := RunReconcile(context.Background(), googleAssertion("g-2", "alice@new.example.com", "Alice"), externalDeps(st))
	if err != nil {
		t.Fatalf("RunReconcile failed: %v", err)
	}
	if acc.Username != "alice_2" {
		t.Fatalf("expected alice_2, got %q", acc.Username)
	}
	if acc.HasPassword() || acc.ExternalID != "g-2" {
		t.Fatalf("external account must have no password and carry the external id: %+v", acc)
	}
}

func TestRunReconcileDerivesUsernameFromName(t *testing.T) {
	st := memory.New()
	acc, err := RunReconcile(context.Background(), googleAssertion("g-3", "jd@example.com", "Jane Doe"), externalDeps(st))
	if err != nil {
		t.Fatalf("RunReconcile failed: %v", err)
	}
	if acc.Username != "jane_doe" {
		t.Fatalf("expected jane_doe, got %q", acc.Username)
	}

	acc, err = RunReconcile(context.Background(), googleAssertion("g-4", "john.smith@example.com", ""), externalDeps(st))
	if err != nil {
		t.Fatalf("RunReconcile failed: %v", err)
	}
	if acc.Username != "john.smith" {
		t.Fatalf("expected email local part, got %q", acc.Username)
	}
}

func TestRunReconcileProbeCap(t *testing.T) {
	st := memory.New()
	seedPasswordAccount(st, "b0@example.com", "bob", "password1")
	seedPasswordAccount(st, "b1@example.com", "bob_1", "password1")
	seedPasswordAccount(st, "b2@example.com", "bob_2", "password1")

	deps := externalDeps(st)
	deps.MaxUsernameProbes = 2

	_, err := RunReconcile(context.Background(), googleAssertion("g-5", "bob@new.example.com", "Bob"), deps)
	if !errors.Is(err, errUsernameUnavailable) {
		t.Fatalf("expected username unavailable, got %v", err)
	}
}

func TestRunReconcileRetriesOnUsernameRace(t *testing.T) {
	st := memory.New()
	deps := externalDeps(st)
	create := deps.CreateAccount
	calls := 0
	deps.CreateAccount = func(ctx context.Context, in store.NewAccount) (store.Account, error) {
		calls++
		if calls == 1 {
			return store.Account{}, &store.ConflictError{Field: store.FieldUsername}
		}
		return create(ctx, in)
	}

	acc, err := RunReconcile(context.Background(), googleAssertion("g-6", "carl@example.com", "Carl"), deps)
	if err != nil {
		t.Fatalf("RunReconcile failed: %v", err)
	}
	if acc.Username != "carl_1" {
		t.Fatalf("expected carl_1 after race, got %q", acc.Username)
	}
}

func TestRunReconcileRejects(t *testing.T) {
	st := memory.New()
	inactive, err := st.CreateAccount(context.Background(), store.NewAccount{Email: "off@example.com", Username: "off", ExternalID: "g-off"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := st.SetActive(context.Background(), inactive.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	linkable := seedPasswordAccount(st, "off2@example.com", "off2", "password1")
	if err := st.SetActive(context.Background(), linkable.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	untrusted := googleAssertion("g-7", "x@example.com", "X")
	untrusted.Issuer = "https://evil.example.com"

	tests := []struct {
		name string
		a    identity.Assertion
		want func(error) bool
	}{
		{"untrusted issuer", untrusted, isOAuth},
		{"missing subject", googleAssertion("", "x@example.com", "X"), isOAuth},
		{"missing email", googleAssertion("g-8", "", "X"), isOAuth},
		{"inactive by external id", googleAssertion("g-off", "off@example.com", "Off"), func(err error) bool { return errors.Is(err, errInactive) }},
		{"inactive by email", googleAssertion("g-9", "off2@example.com", "Off"), func(err error) bool { return errors.Is(err, errInactive) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RunReconcile(context.Background(), tc.a, externalDeps(st))
			if !tc.want(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	got, _ := st.AccountByID(context.Background(), linkable.ID)
	if got.ExternalID != "" {
		t.Fatal("inactive account must not be linked")
	}
}

func isOAuth(err error) bool {
	var o *oauthError
	return errors.As(err, &o)
}

func TestRunLoginExternal(t *testing.T) {
	st := memory.New()
	deps := externalDeps(st)
	deps.VerifyAssertion = func(_ context.Context, raw string) (identity.Assertion, error) {
		if raw != "good-token" {
			return identity.Assertion{}, identity.ErrVerification
		}
		return googleAssertion("g-10", "dora@example.com", "Dora"), nil
	}

	res, err := RunLoginExternal(context.Background(), "good-token", deps)
	if err != nil {
		t.Fatalf("RunLoginExternal failed: %v", err)
	}
	if res.Account.Username != "dora" || res.Tokens.RefreshToken != "refresh:"+res.Account.ID {
		t.Fatalf("unexpected result: %+v", res)
	}

	_, err = RunLoginExternal(context.Background(), "bad-token", deps)
	var o *oauthError
	if !errors.As(err, &o) || o.message != "Google OAuth failed" {
		t.Fatalf("expected OAuth failure, got %v", err)
	}

	if _, err := RunLoginExternal(context.Background(), "  ", deps); !isOAuth(err) {
		t.Fatalf("expected OAuth failure for empty token, got %v", err)
	}
}

func TestDeriveUsername(t *testing.T) {
	cases := map[string]string{
		"Alice":         "alice",
		"Mary Jane Doe": "mary_jane_doe",
		"  ":            "user",
	}
	for in, want := range cases {
		if got := DeriveUsername(in); got != want {
			t.Fatalf("DeriveUsername(%q) = %q, want %q", in, got, want)
		}
	}
}
