package notification

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// LedgerEntry is a dedup lock row: "reminder with this label was attempted
// for this entity, for this audience, on this day". Rows are insert-only and
// never deleted; the store enforces global uniqueness on LockKey, and a
// losing insert means another invocation already owns the reminder.
// Corresponds to the 'notification_ledger' table.
type LedgerEntry struct {
	ID        int64
	LockKey   string // content hash, unique
	LockDay   time.Time
	EntityID  int64
	Target    string
	Label     string // rule task title, or a threshold trigger label like "auto_30"
	CreatedAt time.Time
}

// LockKey hashes the given parts into a hex key suitable for the ledger's
// unique column. Parts are joined with an unambiguous separator so that
// ("a", "bc") and ("ab", "c") never collide.
func LockKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// DailyLockKey builds the lock key used by the recurring rule path: one claim
// per (calendar day, entity, audience, task title).
func DailyLockKey(day time.Time, entityID int64, target, label string) string {
	return LockKey(day.Format("2006-01-02"), fmt.Sprintf("%d", entityID), target, label)
}

// ThresholdLockKey builds the day-agnostic key used by expiry reminders: one
// claim per (entity kind, entity, trigger label) over the item's lifetime.
func ThresholdLockKey(entityKind string, entityID int64, label string) string {
	return LockKey(entityKind, fmt.Sprintf("%d", entityID), label)
}
