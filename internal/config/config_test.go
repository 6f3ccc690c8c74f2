package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearClientEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHATKIT_SERVER_URL", "CHATKIT_CHANNEL_URL", "CHATKIT_TOKEN",
		"CHATKIT_TOKEN_FILE", "CHATKIT_LOG_FILE", "CHATKIT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearClientEnv(t)
	t.Setenv("CHATKIT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8686", cfg.ServerURL)
	assert.Empty(t, cfg.ChannelURL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	clearClientEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url: https://shop.example.com\n"+
			"token: tok-from-file\n"+
			"log_level: debug\n"), 0o644))
	t.Setenv("CHATKIT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", cfg.ServerURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	token, err := cfg.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-from-file", token)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearClientEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: https://from-file\n"), 0o644))
	t.Setenv("CHATKIT_CONFIG", path)
	t.Setenv("CHATKIT_SERVER_URL", "https://from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from-env", cfg.ServerURL)
}

func TestLoadMalformedFile(t *testing.T) {
	clearClientEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [unterminated\n"), 0o644))
	t.Setenv("CHATKIT_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestCredentialFromTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  tok-42\n"), 0o600))

	cfg := Config{Token: "ignored", TokenFile: path}
	token, err := cfg.Credential()
	require.NoError(t, err)
	assert.Equal(t, "tok-42", token)

	cfg.TokenFile = filepath.Join(t.TempDir(), "missing")
	_, err = cfg.Credential()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("chat widget starting", "actor_id", 7)

	assert.Contains(t, stderr.String(), "chat widget starting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry), "file output should be JSON")
	assert.Equal(t, "chat widget starting", entry["msg"])
	assert.Equal(t, float64(7), entry["actor_id"])
}
