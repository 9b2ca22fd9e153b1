package perishable

import (
	"context"
	"time"
)

// Repository defines access to perishable items across both kinds.
type Repository interface {
	// ListExpiringWithin returns items whose expiry date falls within the
	// next `days` days (the maximum configured lead time).
	ListExpiringWithin(ctx context.Context, days int) ([]*Item, error)
	// StampAlert records the last successful alert on the item. A no-op on
	// schemas that lack the alert columns.
	StampAlert(ctx context.Context, kind Kind, id int64, at time.Time, recipient string) error
}
