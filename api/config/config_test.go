package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.StripeSecretKey)
	assert.Equal(t, []string{"US", "CA", "GB"}, cfg.StripeAllowedCountries)
	assert.Equal(t, 10*time.Second, cfg.OutcallTimeout)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, "invites.status", cfg.KafkaInviteTopic)
	assert.Empty(t, cfg.AdminUserIDs)
}

func TestParse_ListsAreTrimmedAndNormalized(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"STRIPE_ALLOWED_COUNTRIES": " us, fr ,,de",
		"ADMIN_USER_IDS":           "admin-1, admin-2 ,",
		"KAFKA_BROKERS":            "localhost:9092",
		"OUTCALL_TIMEOUT":          "3s",
		"PORT":                     "9000",
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"US", "FR", "DE"}, cfg.StripeAllowedCountries)
	assert.Equal(t, []string{"admin-1", "admin-2"}, cfg.AdminUserIDs)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.OutcallTimeout)
	assert.Equal(t, "9000", cfg.HTTPPort)
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := parse(env.Options{Environment: map[string]string{"OUTCALL_TIMEOUT": "soon"}})
	assert.Error(t, err)
}
