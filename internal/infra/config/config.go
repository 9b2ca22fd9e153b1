package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the notifier service.
type AppConfig struct {
	DatabaseURL   string
	HTTPAddr      string
	TriggerSecret string
	Environment   string
	LogLevel      string

	MailFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// Optional shared counter store for rate limiting. Empty = in-memory.
	RedisAddr string

	// Optional in-process trigger, standing in for the external scheduler.
	EnableCron         bool
	CronSpecRules      string
	CronSpecThresholds string
	CronSpecRenewals   string

	// Fixed-window rate limit on trigger endpoints, per client IP per minute.
	TriggerRateLimit int
}

// IsProductionLike reports whether unauthenticated trigger requests must be
// rejected outright.
func (c *AppConfig) IsProductionLike() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.TriggerSecret = os.Getenv("TRIGGER_SECRET")
	if cfg.TriggerSecret == "" && cfg.IsProductionLike() {
		return nil, fmt.Errorf("TRIGGER_SECRET is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.MailFrom = os.Getenv("MAIL_FROM")
	if cfg.MailFrom == "" {
		return nil, fmt.Errorf("MAIL_FROM is not set")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}

	portStr := os.Getenv("SMTP_PORT")
	if portStr == "" {
		portStr = "587"
	}
	cfg.SMTPPort, err = strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	cfg.EnableCron = os.Getenv("ENABLE_CRON") == "true"

	cfg.CronSpecRules = os.Getenv("CRON_SPEC_RULES")
	if cfg.CronSpecRules == "" {
		cfg.CronSpecRules = "*/5 * * * *" // Default: every 5 minutes
	}
	cfg.CronSpecThresholds = os.Getenv("CRON_SPEC_THRESHOLDS")
	if cfg.CronSpecThresholds == "" {
		cfg.CronSpecThresholds = "0 8 * * *" // Default: 8 AM daily
	}
	cfg.CronSpecRenewals = os.Getenv("CRON_SPEC_RENEWALS")
	if cfg.CronSpecRenewals == "" {
		cfg.CronSpecRenewals = "0 9 * * *" // Default: 9 AM daily
	}

	limitStr := os.Getenv("TRIGGER_RATE_LIMIT")
	if limitStr == "" {
		limitStr = "30"
	}
	cfg.TriggerRateLimit, err = strconv.Atoi(limitStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TRIGGER_RATE_LIMIT: %w", err)
	}

	return cfg, nil
}
