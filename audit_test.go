package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store/memory"
)

func auditConfig() Config {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	return cfg
}

func collect(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()

	out := make([]AuditEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d audit events", len(out), n)
		}
	}
	return out
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(16)
	engine := newTestEngine(t, memory.New(), testEngineOptions{cfg: auditConfig(), sink: sink})
	acc := mustRegister(t, engine, "alice@example.com", "alice", "password123")

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.5"), "test-agent")
	if _, err := engine.Login(ctx, "alice", "password123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, _ = engine.Login(ctx, "alice", "wrong-password")

	events := collect(t, sink, 3)

	if events[0].EventType != "register_success" || events[0].UserID != acc.ID {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	login := events[1]
	if login.EventType != "login_success" || !login.Success || login.IP != "203.0.113.5" || login.UserAgent != "test-agent" {
		t.Fatalf("unexpected login event: %+v", login)
	}
	if login.Metadata["method"] != "password" {
		t.Fatalf("expected method metadata, got %v", login.Metadata)
	}
	failed := events[2]
	if failed.EventType != "login_failure" || failed.Success || failed.Error != "invalid_credentials" {
		t.Fatalf("unexpected failure event: %+v", failed)
	}
	if failed.Metadata["reason"] != "password_mismatch" {
		t.Fatalf("expected password_mismatch reason, got %v", failed.Metadata)
	}
}

func TestAuditEventsNeverCarrySecrets(t *testing.T) {
	var buf bytes.Buffer
	cfg := auditConfig()
	cfg.Audit.DropIfFull = false
	notifier := newCaptureNotifier()
	engine := newTestEngine(t, memory.New(), testEngineOptions{
		cfg:      cfg,
		sink:     NewJSONWriterSink(&buf),
		notifier: notifier,
	})
	mustRegister(t, engine, "alice@example.com", "alice", "password123")

	ctx := context.Background()
	pair, err := engine.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := tokenFromLink(t, notifier.next(t))
	if err := engine.ConfirmPasswordReset(ctx, token, "new-password-456"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	engine.Close()

	out := buf.String()
	for _, secret := range []string{"password123", "new-password-456", token, pair.AccessToken, pair.RefreshToken} {
		if strings.Contains(out, secret) {
			t.Fatalf("audit output leaked %q", secret)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 audit lines, got %d:\n%s", len(lines), out)
	}
	var last AuditEvent
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
		t.Fatalf("unmarshal audit line: %v", err)
	}
	if last.EventType != "password_reset_confirm" || !last.Success {
		t.Fatalf("unexpected last event: %+v", last)
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(4)
	engine := newTestEngine(t, memory.New(), testEngineOptions{sink: sink})
	mustRegister(t, engine, "alice@example.com", "alice", "password123")

	select {
	case e := <-sink.Events():
		t.Fatalf("unexpected audit event with audit disabled: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("disabled audit must not count drops")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, "invalid_credentials"},
		{&UserAlreadyExistsError{Field: "email"}, "duplicate"},
		{&OAuthError{Message: "x"}, "oauth_failure"},
		{ErrRateLimited, "rate_limited"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
