package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLink = "http://localhost:3000/reset-password?token=abc123"

func TestRenderReset(t *testing.T) {
	msg, err := RenderReset(testLink, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, ResetSubject, msg.Subject)
	assert.Contains(t, msg.Text, testLink)
	assert.Contains(t, msg.Text, "This link will expire in 15 minutes.")
	assert.Contains(t, msg.HTML, "This link will expire in 15 minutes.")
	// html/template escapes the query separator inside attributes.
	assert.Contains(t, msg.HTML, "reset-password?token=abc123")
}

func TestSMTPMessageHasBothParts(t *testing.T) {
	rendered, err := RenderReset(testLink, 30*time.Minute)
	require.NoError(t, err)

	n := NewSMTPNotifier(SMTPConfig{From: "noreply@example.com"})
	msg, err := n.message("jane@example.com", rendered)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	s := buf.String()
	assert.Contains(t, s, "jane@example.com")
	assert.Contains(t, s, "Subject: Password Reset Request")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "text/plain")
	assert.Contains(t, s, "text/html")
	assert.Less(t, strings.Index(s, "text/plain"), strings.Index(s, "text/html"))
}

func TestSMTPMessageRejectsBadRecipient(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{From: "noreply@example.com"})
	_, err := n.message("not an address", Message{Subject: ResetSubject})
	require.Error(t, err)
}

func TestSMTPNotifierGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	// Accept connections and never send the 220 greeting.
	held := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			held <- conn
		}
	}()
	defer func() {
		_ = ln.Close()
		for {
			select {
			case conn := <-held:
				_ = conn.Close()
			default:
				return
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	n := NewSMTPNotifier(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "u",
		Password: "p",
		From:     "noreply@example.com",
		Timeout:  300 * time.Millisecond,
	})

	start := time.Now()
	err = n.SendPasswordReset(context.Background(), "jane@example.com", testLink)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSMTPNotifierHonoursCallerCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	n := NewSMTPNotifier(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     ln.Addr().(*net.TCPAddr).Port,
		Username: "u",
		Password: "p",
		From:     "noreply@example.com",
		Timeout:  time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		conn := <-accepted
		defer conn.Close()
		cancel()
	}()

	start := time.Now()
	err = n.SendPasswordReset(ctx, "jane@example.com", testLink)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSMTPNotifierNotConfigured(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	err := n.SendPasswordReset(context.Background(), "jane@example.com", testLink)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestMailtrapNotifierPostsMessage(t *testing.T) {
	var got mailtrapRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewMailtrapNotifier(MailtrapConfig{
		APIURL:    srv.URL,
		APIKey:    "key-1",
		FromEmail: "noreply@example.com",
		ResetTTL:  15 * time.Minute,
	})
	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", testLink))

	assert.Equal(t, "Bearer key-1", auth)
	assert.Equal(t, ResetSubject, got.Subject)
	require.Len(t, got.To, 1)
	assert.Equal(t, "jane@example.com", got.To[0].Email)
	assert.Contains(t, got.Text, testLink)
}

func TestMailtrapNotifierSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewMailtrapNotifier(MailtrapConfig{APIURL: srv.URL, APIKey: "k", FromEmail: "a@b.c"})
	err := n.SendPasswordReset(context.Background(), "jane@example.com", testLink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestMailtrapNotifierNotConfigured(t *testing.T) {
	err := NewMailtrapNotifier(MailtrapConfig{}).SendPasswordReset(context.Background(), "a@b.c", testLink)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestLogNotifierWritesLink(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", testLink))
	assert.Contains(t, buf.String(), "reset_link")
	assert.Contains(t, buf.String(), "jane@example.com")
}
