package notification

import (
	"database/sql"
	"fmt"
	"time"
)

// Mode distinguishes rules fired by the scheduler from rules that are only
// ever sent on an operator's explicit request.
type Mode string

const (
	ModeAutomatic Mode = "AUTOMATIC"
	ModeManual    Mode = "MANUAL"
)

// Frequency is the recurrence of an automatic rule.
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekdays Frequency = "WEEKDAYS"
	FrequencyWeekly   Frequency = "WEEKLY"
)

// DefaultClosedStatuses are the task statuses that exclude a task from being
// "pending" when a rule does not configure its own set.
var DefaultClosedStatuses = []string{"OK", "NOT_NEEDED"}

// Rule is a configured recurring reminder. Identity is (TaskTitle, Target);
// rules are never hard-deleted, disabling happens via the Enabled flag.
// Corresponds to the 'notification_rules' table.
type Rule struct {
	ID              int64
	TaskTitle       string
	Target          string // audience tag, e.g. a role name or "GENERICA"
	Enabled         bool
	Mode            Mode
	TemplateID      sql.NullInt64 // optional link to a checklist task template
	ExtraRecipients []string      // explicit addresses on top of the resolved audience
	Frequency       Frequency
	SendTime        string // "HH:MM" or "HH:MM:SS", local to Timezone
	Timezone        string // IANA name, e.g. "Europe/Rome"
	Weekday         sql.NullInt64 // 0=Sunday..6=Saturday, meaningful for WEEKLY only
	ClosedStatuses  []string
	OnlyFuture      bool
	SendOnCreate    bool
	LastFiredDate   sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SendTimeSeconds parses SendTime into seconds since local midnight.
func (r *Rule) SendTimeSeconds() (int, error) {
	var h, m, s int
	if _, err := fmt.Sscanf(r.SendTime, "%d:%d:%d", &h, &m, &s); err != nil {
		s = 0
		if _, err := fmt.Sscanf(r.SendTime, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("invalid send time %q: %w", r.SendTime, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("send time %q out of range", r.SendTime)
	}
	return h*3600 + m*60 + s, nil
}

// EffectiveClosedStatuses returns the rule's closed-status set, falling back
// to the default set when the rule configures none.
func (r *Rule) EffectiveClosedStatuses() []string {
	if len(r.ClosedStatuses) > 0 {
		return r.ClosedStatuses
	}
	return DefaultClosedStatuses
}

// IsClosedStatus reports whether the given task status excludes the task
// from the rule's pending set.
func (r *Rule) IsClosedStatus(status string) bool {
	for _, s := range r.EffectiveClosedStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
