package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"backoffice_notifier/internal/domain/installation"
	"backoffice_notifier/internal/domain/notification"
	idb "backoffice_notifier/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RuleService is the rule evaluator: it decides which recurring reminder
// rules are due, claims a ledger lock per (entity, rule) pair, and fans the
// composed messages out to the resolved recipients. The time gate only marks
// a rule as eligible for the rest of its local day; the ledger, not the
// gate, prevents repeat sends.
type RuleService struct {
	rules         notification.RuleRepository
	ledger        notification.LedgerRepository
	installations installation.Repository
	resolver      *RecipientResolver
	dispatcher    *Dispatcher
	logger        *logrus.Logger
	now           func() time.Time
}

func NewRuleService(
	rules notification.RuleRepository,
	ledger notification.LedgerRepository,
	installations installation.Repository,
	resolver *RecipientResolver,
	dispatcher *Dispatcher,
	logger *logrus.Logger,
) *RuleService {
	return &RuleService{
		rules:         rules,
		ledger:        ledger,
		installations: installations,
		resolver:      resolver,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           time.Now,
	}
}

// ruleClaim is one successfully locked (rule, entity) pair awaiting dispatch.
type ruleClaim struct {
	rule     *notification.Rule
	inst     *installation.Installation
	titles   []string
	localDay time.Time
}

// RunAutomatic evaluates every enabled automatic rule against the live
// installation inventory.
func (s *RuleService) RunAutomatic(ctx context.Context) (*RunSummary, error) {
	now := s.now()

	rules, err := s.rules.ListEnabledAutomatic(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automatic rules: %w", err)
	}
	installations, err := s.installations.ListWithTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}

	summary := &RunSummary{}
	var targets []string
	groups := make(map[string][]ruleClaim)

	for _, rule := range rules {
		due, localDay, err := ruleDue(rule, now)
		if err != nil {
			s.logger.Errorf("Skipping rule %q/%q: %v", rule.TaskTitle, rule.Target, err)
			continue
		}
		if !due {
			continue
		}

		claims, err := s.claimEligible(ctx, rule, installations, localDay, summary)
		if err != nil {
			return nil, err
		}
		for _, c := range claims {
			if _, ok := groups[rule.Target]; !ok {
				targets = append(targets, rule.Target)
			}
			groups[rule.Target] = append(groups[rule.Target], c)
		}
	}

	for _, target := range targets {
		if err := s.dispatchGroup(ctx, target, groups[target], summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// RunOnCreate is the one-shot variant: fired once right after an installation
// is created, restricted to rules flagged send_on_create and to entities
// whose effective date is strictly in the future.
func (s *RuleService) RunOnCreate(ctx context.Context, installationID int64) (*RunSummary, error) {
	inst, err := s.installations.GetByID(ctx, installationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation %d: %w", installationID, err)
	}

	rules, err := s.rules.ListSendOnCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list send-on-create rules: %w", err)
	}

	now := s.now()
	summary := &RunSummary{}
	for _, rule := range rules {
		loc, err := time.LoadLocation(rule.Timezone)
		if err != nil {
			s.logger.Errorf("Skipping rule %q/%q: invalid timezone: %v", rule.TaskTitle, rule.Target, err)
			continue
		}
		localDay := midnightOf(now.In(loc))

		eff, ok := inst.EffectiveDate()
		if !ok || !dateAfter(eff, localDay) {
			continue
		}

		claims, err := s.claimEligible(ctx, rule, []*installation.Installation{inst}, localDay, summary)
		if err != nil {
			return nil, err
		}
		if err := s.dispatchGroup(ctx, rule.Target, claims, summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// SendNow is the on-demand variant: an operator explicitly requests a send,
// so the time gate is bypassed and the lock key carries the invocation
// instant, keeping repeated manual sends out of the daily lock's way.
func (s *RuleService) SendNow(ctx context.Context, taskTitle, target string) (*RunSummary, error) {
	rule, err := s.rules.GetByIdentity(ctx, taskTitle, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %q/%q: %w", taskTitle, target, err)
	}
	if !rule.Enabled {
		return nil, fmt.Errorf("rule %q/%q is disabled", taskTitle, target)
	}

	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("rule %q/%q has invalid timezone: %w", taskTitle, target, err)
	}

	installations, err := s.installations.ListWithTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}

	now := s.now()
	localDay := midnightOf(now.In(loc))
	instant := now.UTC().Format(time.RFC3339Nano)
	runID := uuid.NewString()

	summary := &RunSummary{}
	var claims []ruleClaim
	for _, inst := range installations {
		titles := pendingTitles(rule, inst)
		if len(titles) == 0 {
			continue
		}
		eff, hasDate := inst.EffectiveDate()
		isFuture := hasDate && dateAfter(eff, localDay)
		if rule.OnlyFuture && !isFuture {
			continue
		}
		if isFuture {
			summary.Future++
		}

		entry := &notification.LedgerEntry{
			LockKey:  notification.LockKey("manual", instant, runID, strconv.FormatInt(inst.ID, 10), rule.Target, rule.TaskTitle),
			LockDay:  localDay,
			EntityID: inst.ID,
			Target:   rule.Target,
			Label:    rule.TaskTitle,
		}
		if err := s.ledger.Claim(ctx, entry); err != nil {
			if errors.Is(err, idb.ErrDuplicateLedgerEntry) {
				summary.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to claim reminder lock: %w", err)
		}
		claims = append(claims, ruleClaim{rule: rule, inst: inst, titles: titles, localDay: localDay})
	}

	if err := s.dispatchGroup(ctx, rule.Target, claims, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// claimEligible selects the rule's qualifying installations and claims one
// daily ledger lock per (entity, rule) pair. A losing claim is counted as
// skipped; any other store failure aborts the whole invocation.
func (s *RuleService) claimEligible(ctx context.Context, rule *notification.Rule, installations []*installation.Installation, localDay time.Time, summary *RunSummary) ([]ruleClaim, error) {
	var claims []ruleClaim
	for _, inst := range installations {
		titles := pendingTitles(rule, inst)
		if len(titles) == 0 {
			continue
		}

		eff, hasDate := inst.EffectiveDate()
		isFuture := hasDate && dateAfter(eff, localDay)
		if rule.OnlyFuture && !isFuture {
			continue
		}
		if isFuture {
			summary.Future++
		}

		entry := &notification.LedgerEntry{
			LockKey:  notification.DailyLockKey(localDay, inst.ID, rule.Target, rule.TaskTitle),
			LockDay:  localDay,
			EntityID: inst.ID,
			Target:   rule.Target,
			Label:    rule.TaskTitle,
		}
		if err := s.ledger.Claim(ctx, entry); err != nil {
			if errors.Is(err, idb.ErrDuplicateLedgerEntry) {
				s.logger.Debugf("Reminder for installation %d, rule %q/%q already attempted today. Skipping.", inst.ID, rule.TaskTitle, rule.Target)
				summary.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to claim reminder lock: %w", err)
		}
		claims = append(claims, ruleClaim{rule: rule, inst: inst, titles: titles, localDay: localDay})
	}
	return claims, nil
}

// dispatchGroup composes one message per target aggregating all claimed
// entities, resolves recipients, fans out, and advances last-fired markers
// for the contributing rules on at least one success.
func (s *RuleService) dispatchGroup(ctx context.Context, target string, claims []ruleClaim, summary *RunSummary) error {
	if len(claims) == 0 {
		return nil
	}

	recipients, err := s.resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	recipients = mergeRecipients(recipients, claims)
	if len(recipients) == 0 {
		s.logger.Warnf("No recipients resolve for target %q; %d claimed reminders will not be delivered today.", target, len(claims))
		return nil
	}

	subject, body, refs := composeRuleMessage(target, claims)
	sent, failed := s.dispatcher.FanOut(ctx, recipients, "installation", refs, subject, body, "", notification.ChannelRuleReminder)
	summary.Sent += sent
	summary.Failures += failed

	if sent > 0 {
		advanced := make(map[int64]bool)
		for _, c := range claims {
			if advanced[c.rule.ID] {
				continue
			}
			advanced[c.rule.ID] = true
			if err := s.rules.AdvanceLastFired(ctx, c.rule.ID, c.localDay); err != nil {
				s.logger.Errorf("Failed to advance last-fired date for rule %d: %v", c.rule.ID, err)
			}
		}
	}
	return nil
}

// ruleDue applies the time gate and frequency gate in the rule's timezone.
// Once local time-of-day passes the configured send time, the rule stays
// eligible for every invocation until midnight.
func ruleDue(rule *notification.Rule, now time.Time) (bool, time.Time, error) {
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("invalid timezone %q: %w", rule.Timezone, err)
	}
	local := now.In(loc)
	localDay := midnightOf(local)

	switch rule.Frequency {
	case notification.FrequencyWeekdays:
		if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
			return false, localDay, nil
		}
	case notification.FrequencyWeekly:
		// Legacy schemas lack the weekday column; those rules degrade to a
		// daily gate and the ledger still caps them at one send per day.
		if rule.Weekday.Valid && int64(local.Weekday()) != rule.Weekday.Int64 {
			return false, localDay, nil
		}
	}

	want, err := rule.SendTimeSeconds()
	if err != nil {
		return false, localDay, err
	}
	elapsed := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return elapsed >= want, localDay, nil
}

// pendingTitles returns the titles of the installation's tasks that match
// the rule's task title and are not in its closed-status set.
func pendingTitles(rule *notification.Rule, inst *installation.Installation) []string {
	var titles []string
	for _, task := range inst.Tasks {
		if task.Title != rule.TaskTitle {
			continue
		}
		if rule.IsClosedStatus(task.Status) {
			continue
		}
		titles = append(titles, task.Title)
	}
	return titles
}

func mergeRecipients(resolved []string, claims []ruleClaim) []string {
	set := make(map[string]struct{})
	for _, addr := range resolved {
		set[addr] = struct{}{}
	}
	for _, c := range claims {
		for _, addr := range c.rule.ExtraRecipients {
			addr = strings.ToLower(strings.TrimSpace(addr))
			if strings.Contains(addr, "@") {
				set[addr] = struct{}{}
			}
		}
	}
	merged := make([]string, 0, len(set))
	for addr := range set {
		merged = append(merged, addr)
	}
	// deterministic recipient order keeps runs comparable in the audit log
	sort.Strings(merged)
	return merged
}

func composeRuleMessage(target string, claims []ruleClaim) (subject, body, refs string) {
	subject = fmt.Sprintf("Reminder: pending checklist tasks (%s)", target)

	var b strings.Builder
	b.WriteString("The following installations still have pending tasks:\n\n")
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, strconv.FormatInt(c.inst.ID, 10))
		fmt.Fprintf(&b, "- %s (installation #%d): %s\n", c.inst.ClientName, c.inst.ID, strings.Join(c.titles, ", "))
	}
	b.WriteString("\nThis reminder was generated automatically.\n")
	return subject, b.String(), strings.Join(ids, ",")
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dateAfter reports whether a's calendar date is strictly after b's,
// regardless of the locations the two values carry.
func dateAfter(a, b time.Time) bool {
	return a.Format("2006-01-02") > b.Format("2006-01-02")
}
