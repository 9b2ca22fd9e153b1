package scheduler

import (
	"context"
	"time"

	"backoffice_notifier/internal/app"
	"backoffice_notifier/internal/infra/logger"
	"backoffice_notifier/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// NotificationScheduler is the optional in-process trigger, standing in for
// the external scheduler in single-binary deployments. Each job is a fresh
// short-lived invocation; correctness never depends on the cron cadence,
// only the dedup ledger does.
type NotificationScheduler struct {
	cronEngine         *cron.Cron
	ruleSvc            *app.RuleService
	thresholdSvc       *app.ThresholdService
	billingSvc         *app.BillingService
	logger             *logrus.Logger
	cronSpecRules      string
	cronSpecThresholds string
	cronSpecRenewals   string
}

func NewNotificationScheduler(
	ruleSvc *app.RuleService,
	thresholdSvc *app.ThresholdService,
	billingSvc *app.BillingService,
	logger *logrus.Logger,
	cronSpecRules string, // e.g. "*/5 * * * *"
	cronSpecThresholds string, // e.g. "0 8 * * *"
	cronSpecRenewals string, // e.g. "0 9 * * *"
) *NotificationScheduler {
	return &NotificationScheduler{
		cronEngine:         cron.New(cron.WithLocation(time.Local)),
		ruleSvc:            ruleSvc,
		thresholdSvc:       thresholdSvc,
		billingSvc:         billingSvc,
		logger:             logger,
		cronSpecRules:      cronSpecRules,
		cronSpecThresholds: cronSpecThresholds,
		cronSpecRenewals:   cronSpecRenewals,
	}
}

func (s *NotificationScheduler) Start() {
	s.logger.Info("Starting notification scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecRules, func() {
		s.runJob("rules", 2*time.Minute, s.ruleSvc.RunAutomatic)
	})
	if err != nil {
		s.logger.Fatalf("Could not add rule evaluation cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecThresholds, func() {
		s.runJob("thresholds", 5*time.Minute, s.thresholdSvc.Run)
	})
	if err != nil {
		s.logger.Fatalf("Could not add threshold reminder cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecRenewals, func() {
		s.runJob("renewals", 5*time.Minute, s.billingSvc.Run)
	})
	if err != nil {
		s.logger.Fatalf("Could not add renewal notification cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Notification scheduler started with jobs.")
}

func (s *NotificationScheduler) runJob(engine string, timeout time.Duration, run func(context.Context) (*app.RunSummary, error)) {
	runLog := logger.WithRun(engine)
	runLog.Info("Cron job triggered.")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary, err := run(ctx)
	if err != nil {
		metrics.ObserveRun(engine, "error", 0, 0, 0)
		runLog.Errorf("Cron run failed: %v", err)
		return
	}
	metrics.ObserveRun(engine, "ok", summary.Sent, summary.Skipped, summary.Failures)
	runLog.Infof("Cron run finished: sent=%d skipped=%d failures=%d", summary.Sent, summary.Skipped, summary.Failures)
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped.")
}
