package operator

import "time"

// Operator is a back-office user who can receive notifications. The reserved
// system account (System = true) is the sender identity recorded on every
// dispatch audit entry; it is provisioned at startup.
type Operator struct {
	ID             int64
	Name           string
	Email          string
	Role           string // audience tag, matched after normalization
	Active         bool
	NotifyOptIn    bool // may be backed by a legacy column on older schemas
	AlertRecipient bool // fallback recipient for expiry reminders
	System         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
