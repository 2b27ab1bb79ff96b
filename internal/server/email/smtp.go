package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPMailer talks plain SMTP with AUTH to a configured relay. Every send
// is bounded by sendTimeout so a stuck relay cannot hold a request open.
type SMTPMailer struct {
	addr        string
	from        string
	auth        smtp.Auth
	sendTimeout time.Duration
}

func NewSMTPMailer(relay string, port int, username, password, from string) *SMTPMailer {
	addr := net.JoinHostPort(relay, fmt.Sprintf("%d", port))
	return &SMTPMailer{
		addr:        addr,
		from:        from,
		auth:        smtp.PlainAuth("", username, password, relay),
		sendTimeout: 10 * time.Second,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()

	msg := buildMessage(m.from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to relay %s: %w", m.addr, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to relay %s: %w", m.addr, ctx.Err())
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
