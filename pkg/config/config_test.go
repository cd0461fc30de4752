package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AI_BASE_URL", "")
	t.Setenv("VIDEO_MEETING_LINK", "")
	t.Setenv("AI_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("PAYMENT_PROVIDER", "")

	c := Load()
	assert.Equal(t, "production", c.Env)
	assert.False(t, c.MockPayments(), "mock payments need an explicit APP_ENV=dev")
	assert.Equal(t, "http://localhost:8000", c.AIBaseURL)
	assert.Equal(t, DefaultMeetingLink, c.MeetingLink)
	assert.Equal(t, 120*time.Second, c.AITimeout)
	assert.Empty(t, c.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_BASE_URL", "http://ai.internal:9000/")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")

	c := Load()
	assert.Equal(t, "http://ai.internal:9000", c.AIBaseURL)
	assert.Equal(t, 5*time.Second, c.AITimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, 4, c.DBMaxOpenConns)
}

func TestMockPaymentsOnlyInDev(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PAYMENT_PROVIDER", "")
	assert.True(t, Load().MockPayments())

	t.Setenv("PAYMENT_PROVIDER", "stripe")
	assert.False(t, Load().MockPayments())
}

func TestValidate(t *testing.T) {
	c := &Config{AuthDisabled: true}
	require.EqualError(t, c.Validate(), "DATABASE_URL is required")

	c.DatabaseURL = "postgres://localhost:5432/x"
	require.EqualError(t, c.Validate(), "DATABASE_NAME is required")

	c.DatabaseName = "legal"
	require.NoError(t, c.Validate())

	c.AuthDisabled = false
	require.Error(t, c.Validate())
	c.JWTSecret = "s3cret"
	require.NoError(t, c.Validate())
}
