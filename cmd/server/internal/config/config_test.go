package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Server.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/functions/v1", cfg.Agents.EndpointBase)
	assert.Equal(t, 8, cfg.Agents.MaxConcurrentCalls)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Security.JWTSecret)
	assert.Equal(t, "./audit_logs/orchestrations.log", cfg.Audit.LogPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("AGENT_ENDPOINT_BASE", "https://agents.internal/functions/v1")
	t.Setenv("AGENT_MAX_CONCURRENT_CALLS", "16")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://agents.internal/functions/v1", cfg.Agents.EndpointBase)
	assert.Equal(t, 16, cfg.Agents.MaxConcurrentCalls)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("non-numeric max calls", func(t *testing.T) {
		t.Setenv("AGENT_MAX_CONCURRENT_CALLS", "lots")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-http endpoint", func(t *testing.T) {
		t.Setenv("AGENT_ENDPOINT_BASE", "ftp://agents")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http(s)")
	})

	t.Run("zero max calls", func(t *testing.T) {
		t.Setenv("AGENT_MAX_CONCURRENT_CALLS", "0")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AGENT_MAX_CONCURRENT_CALLS")
	})

	t.Run("non-numeric port", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PORT")
	})
}
