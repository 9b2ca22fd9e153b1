package renewal

import (
	"database/sql"
	"time"
)

// StatusReadyToBill is the workflow status that makes a line eligible for
// billing notification, together with a non-null confirmation and a null
// billing-notified timestamp.
const StatusReadyToBill = "READY_TO_BILL"

// Line is a renewal billing row. Once BillingNotifiedAt is set the line is
// permanently excluded from re-notification; the timestamp is the row's only
// re-notification guard, so it is stamped only after a confirmed send.
type Line struct {
	ID                int64
	ClientID          int64
	ClientName        string
	ItemType          string
	Reference         string
	DueDate           time.Time
	Status            string
	InstallationRef   sql.NullString
	InvoiceCode       sql.NullString
	ConfirmedAt       sql.NullTime
	BillingNotifiedAt sql.NullTime
	BillingNotifiedTo sql.NullString
}
