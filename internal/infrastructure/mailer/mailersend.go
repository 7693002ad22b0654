package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mailersend/mailersend-go"
	"github.com/suufi/mit-lobby7-verification/internal/config"
)

// MailersendMailer sends through the MailerSend transactional API.
type MailersendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailersendMailer(cfg *config.Config) (*MailersendMailer, error) {
	if cfg.MailersendAPIKey == "" {
		return nil, fmt.Errorf("MAILERSEND_API_KEY not set")
	}
	return &MailersendMailer{
		client: mailersend.NewMailersend(cfg.MailersendAPIKey),
		from: mailersend.From{
			Name:  cfg.MailFromName,
			Email: cfg.MailFrom,
		},
	}, nil
}

func (m *MailersendMailer) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: to}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
