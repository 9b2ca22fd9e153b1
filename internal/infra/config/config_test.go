package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/notifier_test")
	t.Setenv("MAIL_FROM", "notifier@example.com")
	t.Setenv("SMTP_HOST", "smtp.example.com")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 30, cfg.TriggerRateLimit)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecRules)
	assert.False(t, cfg.EnableCron)
	assert.False(t, cfg.IsProductionLike())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresMailSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAIL_FROM", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAIL_FROM")
}

func TestLoadRequiresTriggerSecretInProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRIGGER_SECRET")

	t.Setenv("TRIGGER_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProductionLike())
}

func TestLoadRejectsBadNumericValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
}
