package mail

import "context"

// Sender is the outbound mail boundary. The engine treats both outcomes the
// same way for auditing: every attempt is recorded, only a nil error updates
// gate timestamps.
type Sender interface {
	Deliver(ctx context.Context, to, subject, text, html string) error
}
