package app

import (
	"context"
	"fmt"
	"sync"

	"backoffice_notifier/internal/domain/mail"
	"backoffice_notifier/internal/domain/notification"
	"backoffice_notifier/internal/domain/operator"

	"github.com/sirupsen/logrus"
)

// Dispatcher sends composed messages through the mail boundary and
// unconditionally records every attempt in the audit log. A failed delivery
// is recorded under the channel with the error suffix appended and the
// transport error embedded in the body.
type Dispatcher struct {
	mailer mail.Sender
	audits notification.AuditRepository
	sender *operator.Operator
	logger *logrus.Logger
}

func NewDispatcher(mailer mail.Sender, audits notification.AuditRepository, sender *operator.Operator, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		mailer: mailer,
		audits: audits,
		sender: sender,
		logger: logger,
	}
}

// Dispatch delivers one message to one recipient and writes the audit entry
// for the attempt, success or failure. The returned error is the delivery
// error; an audit-write failure on a successful delivery is returned instead,
// since losing the attempt record is a store error.
func (d *Dispatcher) Dispatch(ctx context.Context, entityKind, entityRefs, to, subject, text, html, channel string) error {
	sendErr := d.mailer.Deliver(ctx, to, subject, text, html)

	entry := &notification.AuditEntry{
		EntityKind: entityKind,
		EntityRefs: entityRefs,
		Recipient:  to,
		Subject:    subject,
		Body:       text,
		Channel:    channel,
		SenderID:   d.sender.ID,
	}
	if sendErr != nil {
		entry.Channel = channel + notification.ErrorChannelSuffix
		entry.Body = fmt.Sprintf("%s\n\n[delivery error] %v", text, sendErr)
	}

	if auditErr := d.audits.Create(ctx, entry); auditErr != nil {
		d.logger.Errorf("Failed to write audit entry (channel=%s, to=%s): %v", entry.Channel, to, auditErr)
		if sendErr == nil {
			return fmt.Errorf("failed to record dispatch attempt: %w", auditErr)
		}
	}
	if sendErr != nil {
		return fmt.Errorf("failed to deliver to %s: %w", to, sendErr)
	}
	return nil
}

// FanOut delivers the same message to every recipient with one concurrent
// send per recipient, waits for all sends to settle, and reports how many
// succeeded and failed. A failed send never cancels its siblings.
func (d *Dispatcher) FanOut(ctx context.Context, recipients []string, entityKind, entityRefs, subject, text, html, channel string) (sent, failed int) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, to := range recipients {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			err := d.Dispatch(ctx, entityKind, entityRefs, to, subject, text, html, channel)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.Errorf("Fan-out delivery failed (channel=%s): %v", channel, err)
				failed++
				return
			}
			sent++
		}(to)
	}
	wg.Wait()
	return sent, failed
}
