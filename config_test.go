package aura

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shahryaralam688/AuraAI/shared"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AURA_BACKEND_URL", "https://backend.example.com")
	t.Setenv("AURA_MODEL", "gpt-realtime-test")
	t.Setenv("AURA_MAX_RECONNECT_ATTEMPTS", "5")
	t.Setenv("AURA_GRACE_DELAY", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.BackendURL)
	assert.Equal(t, "gpt-realtime-test", cfg.Model)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 3*time.Second, cfg.GraceDelay)
	// Defaults survive where no variable is set.
	assert.Equal(t, "https://api.openai.com/v1/realtime", cfg.NegotiationURL)
	assert.Equal(t, 30*time.Second, cfg.BackoffCap)
}

func TestLoadConfigRequiresBackendURL(t *testing.T) {
	t.Setenv("AURA_BACKEND_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AURA_BACKEND_URL")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aura.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_url: https://backend.example.com
model: gpt-realtime
max_reconnect_attempts: 2
voice: marin
`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.BackendURL)
	assert.Equal(t, 2, cfg.MaxReconnectAttempts)
	assert.Equal(t, "marin", cfg.Voice)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), shared.ErrNoBackendURL)

	cfg.BackendURL = "https://backend.example.com"
	require.NoError(t, cfg.Validate())

	cfg.MaxReconnectAttempts = -1
	assert.Error(t, cfg.Validate())
}

func TestConfigSink(t *testing.T) {
	cfg := DefaultConfig()
	assert.IsType(t, NopSink{}, cfg.Sink(nopLogger()))

	cfg.WebhookURL = "https://hooks.example.com/aura"
	assert.IsType(t, &WebhookSink{}, cfg.Sink(nopLogger()))
}

func TestConfigBackoff(t *testing.T) {
	cfg := DefaultConfig()
	p := cfg.Backoff()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 30*time.Second, p.Cap)
}
