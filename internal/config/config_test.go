package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.PollTimeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 6, cfg.MorningHour)
	assert.Equal(t, 18, cfg.EveningHour)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.BadgerDBPath)
	assert.Error(t, cfg.RequireBotToken(), "Bot token is optional until the bot starts")
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	dir := writeConfig(t, `
API_BASE_URL: https://digest.example.com/api/
POLL_INTERVAL: 2s
POLL_TIMEOUT: 30s
MORNING_HOUR: 7
`)
	t.Setenv("DAILYDIGEST_POLL_TIMEOUT", "1m")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://digest.example.com/api", cfg.APIBaseURL, "Trailing slash is trimmed")
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.PollTimeout, "Prefixed env var overrides the file")
	assert.Equal(t, 7, cfg.MorningHour)
	assert.Equal(t, "123:abc", cfg.TelegramBotToken, "Bare env var names are accepted")
	assert.NoError(t, cfg.RequireBotToken())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)
	require.NoError(t, os.WriteFile(filepath.Join(work, ".env"), []byte("DAILYDIGEST_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DAILYDIGEST_LOG_LEVEL") })

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		body string
	}{
		{"bad scheme", "API_BASE_URL: ftp://example.com\n"},
		{"no host", "API_BASE_URL: http://\n"},
		{"poll timeout shorter than interval", "POLL_INTERVAL: 10s\nPOLL_TIMEOUT: 5s\n"},
		{"zero interval", "POLL_INTERVAL: 0s\n"},
		{"hour out of range", "EVENING_HOUR: 24\n"},
		{"bad timezone", "DELIVERY_TIMEZONE: Mars/Olympus\n"},
		{"malformed yaml", "API_BASE_URL: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestConfigLocation(t *testing.T) {
	loc, err := Config{DeliveryTimezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
