package app

import (
	"context"
	"testing"
	"time"

	"backoffice_notifier/internal/domain/notification"
	"backoffice_notifier/internal/domain/operator"
	"backoffice_notifier/internal/domain/perishable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thresholdFixture struct {
	svc    *ThresholdService
	items  *fakeItems
	ledger *fakeLedger
	audit  *fakeAudit
	mailer *fakeMailer
}

func newThresholdFixture(items []*perishable.Item, ops []*operator.Operator) *thresholdFixture {
	f := &thresholdFixture{
		items:  &fakeItems{items: items},
		ledger: newFakeLedger(),
		audit:  &fakeAudit{},
		mailer: newFakeMailer(),
	}
	log := testLogger()
	sender := &operator.Operator{ID: 999, Name: "Notification Engine", System: true}
	dispatcher := NewDispatcher(f.mailer, f.audit, sender, log)
	f.svc = NewThresholdService(f.items, &fakeOperators{ops: ops}, f.ledger, dispatcher, log)
	return f
}

func (f *thresholdFixture) clockAt(instant time.Time) {
	f.svc.now = func() time.Time { return instant }
}

func supervisorOperator() *operator.Operator {
	return &operator.Operator{
		ID:          5,
		Name:        "Grace",
		Email:       "supervisor@example.com",
		Role:        "SUPERVISOR",
		Active:      true,
		NotifyOptIn: true,
	}
}

func licenseItem(id int64, expiry time.Time) *perishable.Item {
	return &perishable.Item{
		ID:         id,
		Kind:       perishable.KindLicense,
		Reference:  "LIC-001",
		ClientName: "Rossi SRL",
		ExpiryDate: expiry,
		Status:     "ACTIVE",
	}
}

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestThresholdFiresOnlyOnExactOffsets(t *testing.T) {
	now := utcDay(2026, 3, 10)
	items := []*perishable.Item{
		licenseItem(1, now.AddDate(0, 0, 61)),
		licenseItem(2, now.AddDate(0, 0, 60)),
		licenseItem(3, now.AddDate(0, 0, 59)),
	}
	f := newThresholdFixture(items, []*operator.Operator{supervisorOperator()})
	f.clockAt(now)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, f.mailer.delivered, 1)
	assert.Equal(t, "supervisor@example.com", f.mailer.delivered[0].to)
	assert.Contains(t, f.mailer.delivered[0].subject, "60 days")

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, int64(2), f.ledger.entries[0].EntityID)
	assert.Equal(t, "auto_60", f.ledger.entries[0].Label)

	require.Len(t, f.items.stamps, 1)
	assert.Equal(t, int64(2), f.items.stamps[0].id)
	assert.Equal(t, "supervisor@example.com", f.items.stamps[0].recipient)
}

func TestThresholdSameOffsetFiresOnce(t *testing.T) {
	now := utcDay(2026, 3, 10)
	f := newThresholdFixture(
		[]*perishable.Item{licenseItem(1, now.AddDate(0, 0, 30))},
		[]*operator.Operator{supervisorOperator()},
	)

	f.clockAt(now)
	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	// Same day, same offset: the day-agnostic lock already exists.
	f.clockAt(now.Add(2 * time.Hour))
	second, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, f.mailer.delivered, 1)
	assert.Len(t, f.items.stamps, 1)
}

func TestThresholdEachLeadTimeFiresOverLifetime(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := newThresholdFixture(
		[]*perishable.Item{licenseItem(1, expiry)},
		[]*operator.Operator{supervisorOperator()},
	)

	sent := 0
	// Daily runs across the whole lead window; only the 60/30/15 offsets fire.
	for offset := 60; offset >= 10; offset-- {
		f.clockAt(expiry.AddDate(0, 0, -offset).Add(9 * time.Hour))
		summary, err := f.svc.Run(context.Background())
		require.NoError(t, err)
		sent += summary.Sent
	}

	assert.Equal(t, 3, sent)
	require.Len(t, f.ledger.entries, 3)
	assert.Equal(t, "auto_60", f.ledger.entries[0].Label)
	assert.Equal(t, "auto_30", f.ledger.entries[1].Label)
	assert.Equal(t, "auto_15", f.ledger.entries[2].Label)
}

func TestThresholdMissedOffsetHasNoCatchUp(t *testing.T) {
	now := utcDay(2026, 3, 10)
	// 59 days out: the 60-day offset was yesterday and is gone for good.
	f := newThresholdFixture(
		[]*perishable.Item{licenseItem(1, now.AddDate(0, 0, 59))},
		[]*operator.Operator{supervisorOperator()},
	)
	f.clockAt(now)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, f.ledger.entries)
}

func TestThresholdAbortsOnDeliveryFailure(t *testing.T) {
	now := utcDay(2026, 3, 10)
	items := []*perishable.Item{
		licenseItem(1, now.AddDate(0, 0, 60)),
		licenseItem(2, now.AddDate(0, 0, 30)),
	}
	f := newThresholdFixture(items, []*operator.Operator{supervisorOperator()})
	f.mailer.failAll = errDeliveryRefused
	f.clockAt(now)

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)

	// The failed attempt is on record under the error channel; nothing was
	// stamped and the second item was never reached.
	failed := f.audit.byChannel(notification.ChannelExpiryReminder + notification.ErrorChannelSuffix)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Body, "[delivery error]")
	assert.Empty(t, f.items.stamps)
	assert.Len(t, f.ledger.entries, 1)

	// Once delivery recovers, the first item's lock is spent but the second
	// one still goes out.
	f.mailer.failAll = nil
	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, f.items.stamps, 1)
	assert.Equal(t, int64(2), f.items.stamps[0].id)
}

func TestThresholdFallsBackToAlertRecipient(t *testing.T) {
	now := utcDay(2026, 3, 10)
	fallback := &operator.Operator{
		ID:             7,
		Name:           "Linus",
		Email:          "alerts@example.com",
		Role:           "TECNICO_HW",
		Active:         true,
		NotifyOptIn:    true,
		AlertRecipient: true,
	}
	f := newThresholdFixture(
		[]*perishable.Item{licenseItem(1, now.AddDate(0, 0, 15))},
		[]*operator.Operator{fallback},
	)
	f.clockAt(now)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, f.mailer.delivered, 1)
	assert.Equal(t, "alerts@example.com", f.mailer.delivered[0].to)
}

func TestThresholdNoRecipientIsFatal(t *testing.T) {
	now := utcDay(2026, 3, 10)
	f := newThresholdFixture(
		[]*perishable.Item{licenseItem(1, now.AddDate(0, 0, 15))},
		nil,
	)
	f.clockAt(now)

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipient resolves")
	assert.Empty(t, f.ledger.entries)
	assert.Empty(t, f.mailer.delivered)
}

func TestThresholdCouponSubjectLabel(t *testing.T) {
	now := utcDay(2026, 3, 10)
	coupon := &perishable.Item{
		ID:         9,
		Kind:       perishable.KindCoupon,
		Reference:  "CPN-042",
		ClientName: "Bianchi SPA",
		ExpiryDate: now.AddDate(0, 0, 15),
		Status:     "ACTIVE",
	}
	f := newThresholdFixture([]*perishable.Item{coupon}, []*operator.Operator{supervisorOperator()})
	f.clockAt(now)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, f.mailer.delivered, 1)
	assert.Contains(t, f.mailer.delivered[0].subject, "Service coupon CPN-042")
	assert.Equal(t, perishable.KindCoupon, f.items.stamps[0].kind)
}
