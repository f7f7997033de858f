package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"leadgen-engine/internal/domain"
)

// Submission hosts by sender domain. Anything unknown falls back to Gmail,
// matching the upstream providers this tool is pointed at in practice.
var smtpHosts = map[string]struct {
	Host string
	Port int
}{
	"gmail.com":   {"smtp.gmail.com", 587},
	"outlook.com": {"smtp-mail.outlook.com", 587},
	"hotmail.com": {"smtp-mail.outlook.com", 587},
	"yahoo.com":   {"smtp.mail.yahoo.com", 587},
}

// PasswordLookup resolves the app password for a sender address, normally
// out of the OS keyring.
type PasswordLookup func(address string) (string, error)

// SMTPSender sends through the identity's provider over STARTTLS.
type SMTPSender struct {
	Password PasswordLookup
}

func (s *SMTPSender) Send(ctx context.Context, from domain.SenderIdentity, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient address is empty")
	}

	host, port := from.SMTPHost, from.SMTPPort
	if host == "" {
		cfg := hostFor(from.Address)
		host, port = cfg.Host, cfg.Port
	}
	if port == 0 {
		port = 587
	}

	pass, err := s.Password(from.Address)
	if err != nil {
		return &AuthError{Sender: from.Address, Err: err}
	}

	msg := buildMessage(from.Address, to, subject, body)
	auth := smtp.PlainAuth("", from.Address, pass, host)

	// net/smtp has no context hook; run the dial+send in a goroutine and
	// abandon it if the caller's deadline fires first.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(fmt.Sprintf("%s:%d", host, port), auth, from.Address, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		if isAuthFailure(err) {
			return &AuthError{Sender: from.Address, Err: err}
		}
		return fmt.Errorf("smtp send via %s: %w", host, err)
	}
}

func hostFor(address string) struct {
	Host string
	Port int
} {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		if cfg, ok := smtpHosts[strings.ToLower(address[i+1:])]; ok {
			return cfg
		}
	}
	return smtpHosts["gmail.com"]
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// SMTP auth rejections come back as 534/535 replies; there is no typed
// error for them in net/smtp, so match the reply codes.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "535") || strings.Contains(msg, "534") ||
		strings.Contains(strings.ToLower(msg), "username and password not accepted")
}
