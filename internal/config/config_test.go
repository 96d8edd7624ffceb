package config

import (
	"testing"
	"time"

	"github.com/revaspay/settlement/internal/secrets"
	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "forty")
	t.Setenv("CFG_FLOAT", "12.5")
	t.Setenv("CFG_DURATION", "90s")
	t.Setenv("CFG_SECONDS", "30")
	t.Setenv("CFG_LIST", " a, b ,,c ")

	assert.Equal(t, 42, getEnvInt("CFG_INT", 1))
	assert.Equal(t, 1, getEnvInt("CFG_BAD_INT", 1))
	assert.Equal(t, 12.5, getEnvFloat("CFG_FLOAT", 0))
	assert.Equal(t, 90*time.Second, getEnvDuration("CFG_DURATION", 0))
	assert.Equal(t, 30*time.Second, getEnvDuration("CFG_SECONDS", 0))
	assert.Equal(t, time.Minute, getEnvDuration("CFG_UNSET_DURATION", time.Minute))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("CFG_LIST", nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DOPPLER_PROJECT", "settlement-test")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec")

	cfg := LoadConfig()

	assert.Equal(t, 500.0, cfg.Payout.DefaultThreshold)
	assert.Equal(t, 90*24*time.Hour, cfg.Fraud.Retention)
	assert.Equal(t, 10*time.Minute, cfg.Fraud.RapidRepeatWindow)
	assert.Equal(t, 3, cfg.Fraud.RapidRepeatLimit)
	assert.Equal(t, 3, cfg.Fraud.PatternLimit)
	assert.Equal(t, "whsec", cfg.Gateway.WebhookSecret)
}

func TestGetSecretPrefersSource(t *testing.T) {
	t.Setenv("CFG_SECRET", "from-env")
	cfg := &Config{secretSource: secrets.EnvSource{}}

	assert.Equal(t, "from-env", cfg.GetSecret("CFG_SECRET", "default"))
	assert.Equal(t, "default", cfg.GetSecret("CFG_SECRET_MISSING", "default"))
}
