package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backoffice_notifier/internal/domain/installation"
	"backoffice_notifier/internal/domain/notification"
	"backoffice_notifier/internal/domain/operator"
	"backoffice_notifier/internal/domain/perishable"
	"backoffice_notifier/internal/domain/renewal"
	idb "backoffice_notifier/internal/infra/database"
)

// fakeLedger enforces lock-key uniqueness in memory, mirroring the unique
// index backing the Postgres ledger.
type fakeLedger struct {
	mu      sync.Mutex
	entries []*notification.LedgerEntry
	keys    map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{keys: make(map[string]bool)}
}

func (f *fakeLedger) Claim(_ context.Context, entry *notification.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[entry.LockKey] {
		return idb.ErrDuplicateLedgerEntry
	}
	f.keys[entry.LockKey] = true
	entry.ID = int64(len(f.entries) + 1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*notification.AuditEntry
	failErr error
}

func (f *fakeAudit) Create(_ context.Context, entry *notification.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	entry.ID = int64(len(f.entries) + 1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) byChannel(channel string) []*notification.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*notification.AuditEntry
	for _, e := range f.entries {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

type delivery struct {
	to, subject, text string
}

type fakeMailer struct {
	mu        sync.Mutex
	delivered []delivery
	failFor   map[string]error // per-recipient failures
	failAll   error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: make(map[string]error)}
}

func (f *fakeMailer) Deliver(_ context.Context, to, subject, text, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.delivered = append(f.delivered, delivery{to: to, subject: subject, text: text})
	return nil
}

type fakeRules struct {
	rules     []*notification.Rule
	lastFired map[int64]time.Time
}

func newFakeRules(rules ...*notification.Rule) *fakeRules {
	return &fakeRules{rules: rules, lastFired: make(map[int64]time.Time)}
}

func (f *fakeRules) Upsert(_ context.Context, rule *notification.Rule) error {
	for _, r := range f.rules {
		if r.TaskTitle == rule.TaskTitle && r.Target == rule.Target {
			*r = *rule
			return nil
		}
	}
	rule.ID = int64(len(f.rules) + 1)
	f.rules = append(f.rules, rule)
	return nil
}

func (f *fakeRules) GetByIdentity(_ context.Context, taskTitle, target string) (*notification.Rule, error) {
	for _, r := range f.rules {
		if r.TaskTitle == taskTitle && r.Target == target {
			return r, nil
		}
	}
	return nil, idb.ErrRuleNotFound
}

func (f *fakeRules) ListEnabledAutomatic(_ context.Context) ([]*notification.Rule, error) {
	var out []*notification.Rule
	for _, r := range f.rules {
		if r.Enabled && r.Mode == notification.ModeAutomatic {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) ListSendOnCreate(_ context.Context) ([]*notification.Rule, error) {
	var out []*notification.Rule
	for _, r := range f.rules {
		if r.Enabled && r.SendOnCreate {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) AdvanceLastFired(_ context.Context, id int64, day time.Time) error {
	f.lastFired[id] = day
	return nil
}

type fakeOperators struct {
	ops    []*operator.Operator
	system *operator.Operator
}

func (f *fakeOperators) ListActiveOptedIn(_ context.Context) ([]*operator.Operator, error) {
	var out []*operator.Operator
	for _, op := range f.ops {
		if op.Active && op.NotifyOptIn && !op.System {
			out = append(out, op)
		}
	}
	return out, nil
}

func (f *fakeOperators) FirstByRole(_ context.Context, role string) (*operator.Operator, error) {
	for _, op := range f.ops {
		if op.Active && !op.System && op.Role == role {
			return op, nil
		}
	}
	return nil, idb.ErrOperatorNotFound
}

func (f *fakeOperators) FirstAlertRecipient(_ context.Context) (*operator.Operator, error) {
	for _, op := range f.ops {
		if op.Active && !op.System && op.AlertRecipient {
			return op, nil
		}
	}
	return nil, idb.ErrOperatorNotFound
}

func (f *fakeOperators) EnsureSystemAccount(_ context.Context) (*operator.Operator, error) {
	if f.system == nil {
		f.system = &operator.Operator{ID: 999, Name: "Notification Engine", System: true}
	}
	return f.system, nil
}

type fakeInstallations struct {
	installations []*installation.Installation
}

func (f *fakeInstallations) ListWithTasks(_ context.Context) ([]*installation.Installation, error) {
	return f.installations, nil
}

func (f *fakeInstallations) GetByID(_ context.Context, id int64) (*installation.Installation, error) {
	for _, inst := range f.installations {
		if inst.ID == id {
			return inst, nil
		}
	}
	return nil, idb.ErrInstallationNotFound
}

type alertStamp struct {
	kind      perishable.Kind
	id        int64
	at        time.Time
	recipient string
}

type fakeItems struct {
	items  []*perishable.Item
	stamps []alertStamp
}

func (f *fakeItems) ListExpiringWithin(_ context.Context, _ int) ([]*perishable.Item, error) {
	return f.items, nil
}

func (f *fakeItems) StampAlert(_ context.Context, kind perishable.Kind, id int64, at time.Time, recipient string) error {
	f.stamps = append(f.stamps, alertStamp{kind: kind, id: id, at: at, recipient: recipient})
	return nil
}

type fakeLines struct {
	lines []*renewal.Line
}

func (f *fakeLines) ListReadyToBill(_ context.Context) ([]*renewal.Line, error) {
	var out []*renewal.Line
	for _, l := range f.lines {
		if l.Status == renewal.StatusReadyToBill && l.ConfirmedAt.Valid && !l.BillingNotifiedAt.Valid {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLines) MarkNotified(_ context.Context, ids []int64, at time.Time, recipient string) error {
	for _, id := range ids {
		for _, l := range f.lines {
			if l.ID == id {
				l.BillingNotifiedAt.Time = at
				l.BillingNotifiedAt.Valid = true
				l.BillingNotifiedTo.String = recipient
				l.BillingNotifiedTo.Valid = true
			}
		}
	}
	return nil
}

var errDeliveryRefused = fmt.Errorf("smtp: recipient refused")
