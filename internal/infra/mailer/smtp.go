package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers messages through an SMTP relay. It implements the
// mail.Sender boundary; the engines never see SMTP details.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Deliver(ctx context.Context, to, subject, text, html string) error {
	// gomail has no context support; honor cancellation at the boundary.
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	if html != "" {
		m.AddAlternative("text/html", html)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}
