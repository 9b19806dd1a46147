package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Poller.Interval)
	assert.False(t, cfg.Poller.Backoff.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 20, cfg.Dashboard.PageSize)
	assert.Equal(t, "@every 15s", cfg.Dashboard.RefreshSchedule)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "NOTIFICATIONS", cfg.NATS.Stream)
	assert.Equal(t, "@daily", cfg.History.PruneSchedule)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://roma.internal:9000
  timeout: 5s
poller:
  interval: 500ms
  backoff:
    enabled: true
    max_interval: 10s
dashboard:
  page_size: 50
nats:
  url: nats://127.0.0.1:4222
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://roma.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Poller.Interval)
	assert.True(t, cfg.Poller.Backoff.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Poller.Backoff.MaxInterval)
	assert.Equal(t, 2.0, cfg.Poller.Backoff.Multiplier)
	assert.Equal(t, 50, cfg.Dashboard.PageSize)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ROMA_API_URL", "http://roma.example.com:8000")
	t.Setenv("ROMA_API_TIMEOUT", "12s")
	t.Setenv("ROMA_DASHBOARD_PAGE_SIZE", "5")

	cfg, err := Load(writeConfig(t, "api:\n  base_url: http://ignored:1\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://roma.example.com:8000", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Dashboard.PageSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "zero timeout", content: "api:\n  timeout: 0s\n"},
		{name: "negative poll interval", content: "poller:\n  interval: -1s\n"},
		{name: "zero page size", content: "dashboard:\n  page_size: 0\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "bad multiplier", content: "poller:\n  backoff:\n    enabled: true\n    multiplier: 0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Development: true}.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
