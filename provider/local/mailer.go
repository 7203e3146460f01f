package local

import (
	"context"

	authflow "github.com/goliatone/go-auth-flow"
)

// Mailer delivers confirmation emails.
type Mailer interface {
	SendConfirmation(ctx context.Context, kind authflow.ResendType, email string) error
}

// MailerFunc adapts a function to Mailer.
type MailerFunc func(ctx context.Context, kind authflow.ResendType, email string) error

func (f MailerFunc) SendConfirmation(ctx context.Context, kind authflow.ResendType, email string) error {
	return f(ctx, kind, email)
}

type logMailer struct {
	logger authflow.Logger
}

func (m logMailer) SendConfirmation(_ context.Context, kind authflow.ResendType, email string) error {
	m.logger.Info("confirmation email requested", "kind", kind, "email", email)
	return nil
}
