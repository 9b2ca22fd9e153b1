package perishable

import (
	"database/sql"
	"time"
)

// Kind distinguishes the two perishable record families.
type Kind string

const (
	KindLicense Kind = "LICENSE"
	KindCoupon  Kind = "COUPON"
)

// Item is a perishable record (a software license or a service coupon) with
// an expiry date. The last-alert fields are stamped by the threshold engine
// after a confirmed send; status is mutated by unrelated CRUD flows.
type Item struct {
	ID          int64
	Kind        Kind
	Reference   string
	ClientName  string
	ExpiryDate  time.Time
	Status      string
	LastAlertAt sql.NullTime
	LastAlertTo sql.NullString
}
