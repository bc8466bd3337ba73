package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMailtrapURL is the Mailtrap sending API endpoint.
const DefaultMailtrapURL = "https://send.api.mailtrap.io/api/send"

// MailtrapConfig configures MailtrapNotifier.
type MailtrapConfig struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
	ResetTTL  time.Duration
	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// MailtrapNotifier sends reset emails through the Mailtrap HTTP API.
type MailtrapNotifier struct {
	cfg MailtrapConfig
}

// NewMailtrapNotifier returns a Mailtrap notifier.
func NewMailtrapNotifier(cfg MailtrapConfig) *MailtrapNotifier {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultMailtrapURL
	}
	if cfg.FromName == "" {
		cfg.FromName = "authcore"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &MailtrapNotifier{cfg: cfg}
}

type mailtrapAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailtrapRequest struct {
	From     mailtrapAddress   `json:"from"`
	To       []mailtrapAddress `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text"`
	HTML     string            `json:"html"`
	Category string            `json:"category"`
}

// SendPasswordReset renders the reset email and posts it to Mailtrap.
func (n *MailtrapNotifier) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	if n.cfg.APIKey == "" || n.cfg.FromEmail == "" {
		return ErrNotConfigured
	}

	msg, err := RenderReset(resetLink, n.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}

	payload, err := json.Marshal(mailtrapRequest{
		From:     mailtrapAddress{Email: n.cfg.FromEmail, Name: n.cfg.FromName},
		To:       []mailtrapAddress{{Email: to}},
		Subject:  msg.Subject,
		Text:     msg.Text,
		HTML:     msg.HTML,
		Category: "password_reset",
	})
	if err != nil {
		return fmt.Errorf("marshaling email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)

	resp, err := n.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mailtrap API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
