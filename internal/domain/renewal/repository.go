package renewal

import (
	"context"
	"time"
)

// Repository defines access to renewal billing lines.
type Repository interface {
	// ListReadyToBill returns lines with status READY_TO_BILL, a non-null
	// confirmation and a null billing-notified timestamp.
	ListReadyToBill(ctx context.Context) ([]*Line, error)
	// MarkNotified stamps the billing-notified timestamp and recipient on
	// the given lines. Called only after a confirmed successful send.
	MarkNotified(ctx context.Context, ids []int64, at time.Time, recipient string) error
}
