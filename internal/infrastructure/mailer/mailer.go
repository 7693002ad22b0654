package mailer

import (
	"context"
	"fmt"

	"github.com/suufi/mit-lobby7-verification/internal/config"
)

// Mailer sends a multipart (text + HTML) email. Two interchangeable
// implementations exist: the institute's authenticated SMTP relay and the
// MailerSend API.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// New picks the implementation named by cfg.MailProvider.
func New(cfg *config.Config) (Mailer, error) {
	switch cfg.MailProvider {
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "mailersend":
		return NewMailersendMailer(cfg)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
