package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the settings for SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ResetTTL time.Duration
	// Timeout bounds a whole send, dial through QUIT.
	Timeout time.Duration
}

// Configured reports whether every field needed to send mail is present.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.From != ""
}

// SMTPNotifier sends reset mail over SMTP with PLAIN auth. Port 465 uses
// implicit TLS; any other port requires STARTTLS.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier builds an SMTPNotifier, defaulting the port to 587.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 15 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPNotifier{cfg: cfg}
}

// SendPasswordReset renders the reset message and delivers it.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, to, resetLink string) error {
	if !n.cfg.Configured() {
		return ErrNotConfigured
	}
	rendered, err := RenderReset(resetLink, n.cfg.ResetTTL)
	if err != nil {
		return err
	}
	msg, err := n.message(to, rendered)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	client, err := n.client(ctx)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) message(to string, rendered Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(rendered.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, rendered.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, rendered.HTML)
	return msg, nil
}

func (n *SMTPNotifier) client(ctx context.Context) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
		mail.WithTimeout(n.cfg.Timeout),
		mail.WithDialContextFunc(n.dialer(ctx)),
	}
	if n.cfg.Port != 465 {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}

// dialer returns a dial func whose connections carry the deadline of ctx
// and are closed as soon as ctx is done, so a server that stops talking
// mid-conversation cannot hold the send open.
func (n *SMTPNotifier) dialer(ctx context.Context) mail.DialContextFunc {
	return func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{Timeout: n.cfg.Timeout}
		var (
			conn net.Conn
			err  error
		)
		if n.cfg.Port == 465 {
			td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}}
			conn, err = td.DialContext(dialCtx, network, addr)
		} else {
			conn, err = d.DialContext(dialCtx, network, addr)
		}
		if err != nil {
			return nil, fmt.Errorf("smtp dial %s: %w", net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port)), err)
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
		context.AfterFunc(ctx, func() { _ = conn.Close() })
		return conn, nil
	}
}
