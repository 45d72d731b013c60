package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("CHECKPOINT_BACKEND", "")
	t.Setenv("GOGO_MODE", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, CheckpointMemory, cfg.CheckpointBackend)
	assert.Equal(t, "3442 587242", cfg.PassengerID)
	assert.Equal(t, 25, cfg.RecursionLimit)
	assert.False(t, cfg.MockMode())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CHECKPOINT_BACKEND", "SQLite")
	t.Setenv("GOGO_MODE", "mock")
	t.Setenv("LLM_TIMEOUT_MS", "1500")

	cfg := Load()
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, CheckpointSQLite, cfg.CheckpointBackend)
	assert.True(t, cfg.MockMode())
	assert.Equal(t, 1500*time.Millisecond, cfg.LLMTimeout)
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		HTTPPort:          0,
		CheckpointBackend: "redis",
		RecursionLimit:    0,
		WSPingInterval:    time.Minute,
		WSReadTimeout:     time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "CHECKPOINT_BACKEND")
	assert.Contains(t, err.Error(), "LLM_BASE_URL")
	assert.Contains(t, err.Error(), "RECURSION_LIMIT")
	assert.Contains(t, err.Error(), "WS_PING_INTERVAL_MS")
}
