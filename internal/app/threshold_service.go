package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"backoffice_notifier/internal/domain/notification"
	"backoffice_notifier/internal/domain/operator"
	"backoffice_notifier/internal/domain/perishable"
	idb "backoffice_notifier/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// expiryThresholds are the fixed lead times, in days before expiry, at which
// a one-time reminder fires. There is no catch-up for missed days: only an
// exact offset match triggers.
var expiryThresholds = []int{60, 30, 15}

// expiryAudience is the preferred role for the single default recipient.
const expiryAudience = "SUPERVISOR"

// ThresholdService is the threshold reminder engine for perishable records.
// Each (item, threshold) pair is claimed through the dedup ledger with a
// day-agnostic key, so it fires at most once over the item's lifetime even
// under concurrent invocations. Unlike the rule evaluator's fan-out, this
// engine aborts the whole run on the first delivery failure so failures stay
// visible instead of being silently skipped.
type ThresholdService struct {
	items      perishable.Repository
	operators  operator.Repository
	ledger     notification.LedgerRepository
	dispatcher *Dispatcher
	logger     *logrus.Logger
	now        func() time.Time
}

func NewThresholdService(
	items perishable.Repository,
	operators operator.Repository,
	ledger notification.LedgerRepository,
	dispatcher *Dispatcher,
	logger *logrus.Logger,
) *ThresholdService {
	return &ThresholdService{
		items:      items,
		operators:  operators,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Run evaluates every perishable item inside the lookahead window.
func (s *ThresholdService) Run(ctx context.Context) (*RunSummary, error) {
	now := s.now()

	recipient, err := s.defaultRecipient(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListExpiringWithin(ctx, maxThreshold())
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring items: %w", err)
	}

	summary := &RunSummary{}
	for _, item := range items {
		offset := daysUntil(now, item.ExpiryDate)
		if !isThreshold(offset) {
			continue
		}

		label := fmt.Sprintf("auto_%d", offset)
		kind := strings.ToLower(string(item.Kind))

		entry := &notification.LedgerEntry{
			LockKey:  notification.ThresholdLockKey(kind, item.ID, label),
			LockDay:  midnightOf(now),
			EntityID: item.ID,
			Target:   expiryAudience,
			Label:    label,
		}
		if err := s.ledger.Claim(ctx, entry); err != nil {
			if errors.Is(err, idb.ErrDuplicateLedgerEntry) {
				s.logger.Debugf("Expiry reminder %s for %s %d already sent. Skipping.", label, kind, item.ID)
				summary.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to claim expiry reminder lock: %w", err)
		}

		subject, body := composeExpiryMessage(item, offset)
		err := s.dispatcher.Dispatch(ctx, kind, strconv.FormatInt(item.ID, 10),
			recipient.Email, subject, body, "", notification.ChannelExpiryReminder)
		if err != nil {
			// The failed attempt is already in the audit log under the
			// error channel; abort so the failure is investigated rather
			// than buried under later items.
			return nil, fmt.Errorf("aborting expiry run after delivery failure for %s %d: %w", kind, item.ID, err)
		}
		summary.Sent++

		if err := s.items.StampAlert(ctx, item.Kind, item.ID, now, recipient.Email); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// defaultRecipient resolves the single recipient for expiry reminders:
// preferred role first, then any active alert-recipient operator. Resolving
// nobody is a configuration error and fatal for the whole run.
func (s *ThresholdService) defaultRecipient(ctx context.Context) (*operator.Operator, error) {
	op, err := s.operators.FirstByRole(ctx, expiryAudience)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, idb.ErrOperatorNotFound) {
		return nil, fmt.Errorf("failed to resolve expiry recipient by role: %w", err)
	}

	op, err = s.operators.FirstAlertRecipient(ctx)
	if err != nil {
		if errors.Is(err, idb.ErrOperatorNotFound) {
			return nil, fmt.Errorf("no recipient resolves for expiry reminders (no %s operator and no alert recipient)", expiryAudience)
		}
		return nil, fmt.Errorf("failed to resolve fallback expiry recipient: %w", err)
	}
	return op, nil
}

func maxThreshold() int {
	max := 0
	for _, t := range expiryThresholds {
		if t > max {
			max = t
		}
	}
	return max
}

func isThreshold(offset int) bool {
	for _, t := range expiryThresholds {
		if offset == t {
			return true
		}
	}
	return false
}

// daysUntil computes the integer day offset between today's and the expiry
// date's local midnights, rounded to absorb DST shifts.
func daysUntil(now, expiry time.Time) int {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	exp := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, loc)
	return int(math.Round(exp.Sub(today).Hours() / 24))
}

func composeExpiryMessage(item *perishable.Item, offset int) (subject, body string) {
	kindLabel := "License"
	if item.Kind == perishable.KindCoupon {
		kindLabel = "Service coupon"
	}
	subject = fmt.Sprintf("%s %s expires in %d days", kindLabel, item.Reference, offset)
	body = fmt.Sprintf(
		"%s %s for %s expires on %s (in %d days).\nCurrent status: %s.\n\nThis reminder was generated automatically.\n",
		kindLabel, item.Reference, item.ClientName,
		item.ExpiryDate.Format("2006-01-02"), offset, item.Status,
	)
	return subject, body
}
