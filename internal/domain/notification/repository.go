package notification

import (
	"context"
	"time"
)

// RuleRepository defines persistence for notification rules. Rules are
// written by the configuration screens through Upsert and read by the
// evaluator on every invocation.
type RuleRepository interface {
	Upsert(ctx context.Context, rule *Rule) error
	GetByIdentity(ctx context.Context, taskTitle, target string) (*Rule, error)
	ListEnabledAutomatic(ctx context.Context) ([]*Rule, error)
	ListSendOnCreate(ctx context.Context) ([]*Rule, error)
	// AdvanceLastFired moves the rule's last-fired-date marker forward.
	// Best effort: callers log failures but do not abort on them.
	AdvanceLastFired(ctx context.Context, id int64, day time.Time) error
}

// LedgerRepository is the dedup ledger. Claim inserts the entry and returns
// the repository's duplicate sentinel when the unique constraint rejects it;
// that outcome means "already attempted" and is not an error condition.
type LedgerRepository interface {
	Claim(ctx context.Context, entry *LedgerEntry) error
}

// AuditRepository appends dispatch attempt records.
type AuditRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
}
