package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backoffice_notifier/internal/domain/notification"
	"backoffice_notifier/internal/domain/renewal"

	"github.com/sirupsen/logrus"
)

// billingAudience is the audience tag for the billing staff recipient.
const billingAudience = "BILLING"

// BillingService is the one-shot renewal notifier: it tells billing staff
// which confirmed renewal lines are ready to invoice, once per line. The
// billing-notified timestamp is the only re-notification guard, so it is
// stamped strictly after a confirmed successful send. Like the threshold
// engine, a delivery failure aborts the whole run.
type BillingService struct {
	lines      renewal.Repository
	resolver   *RecipientResolver
	dispatcher *Dispatcher
	logger     *logrus.Logger
	now        func() time.Time
}

func NewBillingService(
	lines renewal.Repository,
	resolver *RecipientResolver,
	dispatcher *Dispatcher,
	logger *logrus.Logger,
) *BillingService {
	return &BillingService{
		lines:      lines,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Run notifies one aggregated message per client with eligible lines.
func (s *BillingService) Run(ctx context.Context) (*RunSummary, error) {
	lines, err := s.lines.ListReadyToBill(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready-to-bill lines: %w", err)
	}

	summary := &RunSummary{}
	if len(lines) == 0 {
		return summary, nil
	}

	addresses, err := s.resolver.Resolve(ctx, billingAudience)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no recipient resolves for the %s audience", billingAudience)
	}
	recipient := addresses[0]

	now := s.now()
	for _, group := range groupByClient(lines) {
		subject, body, refs, ids := composeBillingMessage(group)

		err := s.dispatcher.Dispatch(ctx, "renewal", refs, recipient, subject, body, "", notification.ChannelRenewalBilling)
		if err != nil {
			// Audit entry with the error channel is already written; the
			// unstamped lines stay eligible for the next run.
			return nil, fmt.Errorf("aborting billing run after delivery failure for client %d: %w", group[0].ClientID, err)
		}
		summary.Sent++

		if err := s.lines.MarkNotified(ctx, ids, now, recipient); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// groupByClient partitions lines per client, preserving the repository's
// client ordering.
func groupByClient(lines []*renewal.Line) [][]*renewal.Line {
	var order []int64
	byClient := make(map[int64][]*renewal.Line)
	for _, line := range lines {
		if _, ok := byClient[line.ClientID]; !ok {
			order = append(order, line.ClientID)
		}
		byClient[line.ClientID] = append(byClient[line.ClientID], line)
	}
	groups := make([][]*renewal.Line, 0, len(order))
	for _, id := range order {
		groups = append(groups, byClient[id])
	}
	return groups
}

func composeBillingMessage(group []*renewal.Line) (subject, body, refs string, ids []int64) {
	client := group[0].ClientName
	subject = fmt.Sprintf("Renewals ready to invoice: %s", client)

	var b strings.Builder
	fmt.Fprintf(&b, "The following confirmed renewals for %s are ready to invoice:\n\n", client)
	refParts := make([]string, 0, len(group))
	for _, line := range group {
		ids = append(ids, line.ID)
		refParts = append(refParts, strconv.FormatInt(line.ID, 10))
		fmt.Fprintf(&b, "- %s (%s), due %s", line.Reference, line.ItemType, line.DueDate.Format("2006-01-02"))
		if line.InstallationRef.Valid {
			fmt.Fprintf(&b, ", installation %s", line.InstallationRef.String)
		}
		if line.InvoiceCode.Valid {
			fmt.Fprintf(&b, ", invoice code %s", line.InvoiceCode.String)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nThis notification was generated automatically.\n")
	return subject, b.String(), strings.Join(refParts, ","), ids
}
