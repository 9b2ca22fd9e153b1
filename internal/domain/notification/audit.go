package notification

import "time"

// Dispatch channels. A failed attempt is recorded under the channel with the
// ErrorChannelSuffix appended, with the transport error embedded in the body.
const (
	ChannelRuleReminder   = "rule_reminder"
	ChannelExpiryReminder = "expiry_reminder"
	ChannelRenewalBilling = "renewal_billing"

	ErrorChannelSuffix = "_error"
)

// AuditEntry is an append-only record of a single dispatch attempt, success
// or failure. Corresponds to the 'notification_audit' table.
type AuditEntry struct {
	ID         int64
	EntityKind string // "installation", "license", "coupon", "renewal"
	EntityRefs string // comma-joined ids of the entities the message covers
	Recipient  string
	Subject    string
	Body       string
	Channel    string
	SenderID   int64 // reserved system operator
	CreatedAt  time.Time
}
