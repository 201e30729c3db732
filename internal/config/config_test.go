package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Gateway.URL)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Zero(t, cfg.Gateway.RetryCount)
	assert.Equal(t, domain.ConsensusMethod(""), cfg.ConsensusMethod)
	assert.Equal(t, 60*time.Minute, cfg.SessionIdleTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://oracle.example.com/")
	t.Setenv("GATEWAY_TIMEOUT", "5s")
	t.Setenv("GATEWAY_RETRY_COUNT", "2")
	t.Setenv("CONSENSUS_METHOD", "median")
	t.Setenv("SESSION_IDLE_TTL", "120")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")
	t.Setenv("FRONTEND_URL", "https://center.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://oracle.example.com", cfg.Gateway.URL)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 2, cfg.Gateway.RetryCount)
	assert.Equal(t, domain.ConsensusMedian, cfg.ConsensusMethod)
	assert.Equal(t, 2*time.Minute, cfg.SessionIdleTTL)
	assert.False(t, cfg.ConversationLog.Enabled)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", ""},
		{"GATEWAY_URL", ""},
		{"GATEWAY_TIMEOUT", "0s"},
		{"GATEWAY_RETRY_COUNT", "-1"},
		{"CONSENSUS_METHOD", "coin_flip"},
		{"RATE_LIMIT_REQUESTS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvDurationFallback(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}
