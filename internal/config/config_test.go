package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYCOM_URL", "")
	t.Setenv("PAYCOM_TIMEOUT_SECONDS", "")
	t.Setenv("PAYMENT_LOCK_TTL_SECONDS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, defaultGatewayURL, cfg.Gateway.URL)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "paycom.payment.events", cfg.Kafka.Topics.PaymentEvents)
	assert.Equal(t, "paycom.payment.commands", cfg.Kafka.Topics.PaymentCommands)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAYCOM_USERNAME", "merchant")
	t.Setenv("PAYCOM_KEY", "secret")
	t.Setenv("PAYCOM_KEY_ID", "42")
	t.Setenv("PAYCOM_PROCESSOR_ID", "proc")
	t.Setenv("PAYCOM_TIMEOUT_SECONDS", "9")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("JWT_SECRET", "jwt")

	cfg := Load()

	assert.Equal(t, "merchant", cfg.Gateway.Username)
	assert.Equal(t, "42", cfg.Gateway.KeyID)
	assert.Equal(t, 9*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Migrations.AutoMigrate)
	require.NoError(t, cfg.Validate())
}

func TestValidateReportsMissingCredentials(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{Username: "merchant", Timeout: time.Second}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYCOM_KEY is required")
	assert.Contains(t, err.Error(), "PAYCOM_KEY_ID is required")
	assert.Contains(t, err.Error(), "PAYCOM_PROCESSOR_ID is required")
	assert.NotContains(t, err.Error(), "PAYCOM_USERNAME")
	assert.Contains(t, err.Error(), "OIDC_ISSUER or JWT_SECRET")
}
