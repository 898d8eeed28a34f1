package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// Mailer delivers one-time codes.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogMailer writes codes to the log instead of sending them. Development
// and end-to-end tests only.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendCode(_ context.Context, email, code string, expiresAt time.Time) error {
	m.Logger.Info("otp_dispatched", "email", email, "code", code, "expires_at", expiresAt)
	return nil
}

// SMTPMailer sends codes through a plain SMTP relay.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string // optional; enables PLAIN auth
	Password string
}

func (m *SMTPMailer) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	var auth smtp.Auth
	if m.Username != "" {
		host, _, _ := strings.Cut(m.Addr, ":")
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + email,
		"Subject: Your sign-in code",
		"Content-Type: text/plain; charset=utf-8",
		"",
		fmt.Sprintf("Your sign-in code is %s.", code),
		fmt.Sprintf("It expires at %s.", expiresAt.UTC().Format(time.RFC1123)),
		"",
	}, "\r\n")

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(m.Addr, auth, m.From, []string{email}, []byte(msg))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
