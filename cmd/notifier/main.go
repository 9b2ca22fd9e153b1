package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice_notifier/internal/app"
	"backoffice_notifier/internal/infra/config"
	idb "backoffice_notifier/internal/infra/database"
	"backoffice_notifier/internal/infra/httpapi"
	"backoffice_notifier/internal/infra/logger"
	"backoffice_notifier/internal/infra/mailer"
	"backoffice_notifier/internal/infra/scheduler"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. Environment: %s, LogLevel: %s", cfg.Environment, cfg.LogLevel)

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Schema capability descriptor, resolved once for the process lifetime.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	caps, err := idb.DetectCapabilities(ctx, db)
	cancel()
	if err != nil {
		log.Fatalf("FATAL: Could not probe store schema capabilities: %v", err)
	}
	log.Infof("Store capabilities resolved: operator opt-in=%t, license stamps=%t, coupon stamps=%t, rule weekday=%t",
		caps.OperatorOptIn, caps.LicenseAlertStamps, caps.CouponAlertStamps, caps.RuleWeekday)

	// Repositories
	ruleRepo := idb.NewPostgresRuleRepository(db, caps)
	ledgerRepo := idb.NewPostgresLedgerRepository(db)
	auditRepo := idb.NewPostgresAuditRepository(db)
	operatorRepo := idb.NewPostgresOperatorRepository(db, caps)
	installationRepo := idb.NewPostgresInstallationRepository(db)
	perishableRepo := idb.NewPostgresPerishableRepository(db, caps)
	renewalRepo := idb.NewPostgresRenewalRepository(db)

	// Reserved sender account, provisioned up front.
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	systemAccount, err := operatorRepo.EnsureSystemAccount(ctx)
	cancel()
	if err != nil {
		log.Fatalf("FATAL: Could not provision system sender account: %v", err)
	}
	log.Infof("System sender account ready (id=%d).", systemAccount.ID)

	// Services
	smtpSender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	dispatcher := app.NewDispatcher(smtpSender, auditRepo, systemAccount, log)
	resolver := app.NewRecipientResolver(operatorRepo)
	ruleSvc := app.NewRuleService(ruleRepo, ledgerRepo, installationRepo, resolver, dispatcher, log)
	thresholdSvc := app.NewThresholdService(perishableRepo, operatorRepo, ledgerRepo, dispatcher, log)
	billingSvc := app.NewBillingService(renewalRepo, resolver, dispatcher, log)
	ruleAdmin := app.NewRuleAdminService(ruleRepo)

	// Optional shared rate-limit counter store.
	var rateLimitStore httpapi.RateLimitStore
	if cfg.RedisAddr != "" {
		rateLimitStore = httpapi.NewRedisRateLimitStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		log.Infof("Shared rate-limit store enabled (redis at %s).", cfg.RedisAddr)
	}

	// Optional in-process trigger.
	var notifScheduler *scheduler.NotificationScheduler
	if cfg.EnableCron {
		notifScheduler = scheduler.NewNotificationScheduler(
			ruleSvc, thresholdSvc, billingSvc, log,
			cfg.CronSpecRules, cfg.CronSpecThresholds, cfg.CronSpecRenewals,
		)
		notifScheduler.Start()
	}

	server := httpapi.NewServer(cfg, ruleSvc, thresholdSvc, billingSvc, ruleAdmin, rateLimitStore, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Infof("HTTP server stopped: %v", err)
		}
	}()
	log.Infof("Notification engine listening on %s.", cfg.HTTPAddr)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if notifScheduler != nil {
		notifScheduler.Stop()
	}
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("Application shut down gracefully.")
}
