package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, 300000, cfg.TimeoutMS)
	assert.Equal(t, 5*time.Minute, cfg.Timeout())
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://inference.internal:11434")
	t.Setenv("OLLAMA_TIMEOUT", "15000")
	t.Setenv("OLLAMA_MCP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://inference.internal:11434", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("OLLAMA_TIMEOUT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
