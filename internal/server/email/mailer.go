// Package email delivers tokens out of band. Delivery is a best-effort side
// effect of an already committed state change: failures are reported to the
// caller, never retried here, and never roll anything back.
package email

import "context"

// Mailer sends a single message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NullMailer drops every message. Used when no relay is configured and in
// tests.
type NullMailer struct{}

func (NullMailer) Send(ctx context.Context, to, subject, body string) error {
	return nil
}
