// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithBaseURLFromEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://calls.example.com")

	cfg, err := NewLoader("", "v1.0.0").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.0.0", cfg.Version)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, "https://calls.example.com/call/connect", cfg.API.ConnectURL())
	assert.Equal(t, "https://calls.example.com/call", cfg.API.CallURL())
	assert.Equal(t, DefaultAPITimeout, cfg.API.Timeout)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_MissingBaseURLFails(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "")

	_, err := NewLoader("", "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "api.baseUrl is required")
}

func TestLoad_LegacyBaseURLAlias(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "http://localhost:1337")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1337", cfg.API.BaseURL)
}

func TestLoad_PrimaryBeatsLegacy(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://primary.example.com")
	t.Setenv(EnvLegacyBaseURL, "http://legacy.example.com")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, "https://primary.example.com", cfg.API.BaseURL)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
listenAddr: ":9000"
logLevel: debug
api:
  baseUrl: https://file.example.com/
  connectPath: /v2/call/connect
  timeout: 3s
  requestData:
    services:
      llm: openai
cors:
  allowedOrigins: ["https://app.example.com"]
rateLimit:
  enabled: false
server:
  shutdownTimeout: 20s
`)
	t.Setenv("VOICECAB_LISTEN", ":9100")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "")

	loader := NewLoader(path, "")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr, "env wins over file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://file.example.com/v2/call/connect", cfg.API.ConnectURL())
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, map[string]any{"llm": "openai"}, cfg.API.RequestData["services"])
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Contains(t, loader.ConsumedEnvKeys, "VOICECAB_LISTEN")
	assert.Contains(t, loader.ConsumedEnvKeys, EnvLegacyBaseURL)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	path := writeConfig(t, "api:\n  baseUrl: https://x.example.com\n  bogus: 1\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv(EnvBaseURL, "https://calls.example.com")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConnectPath, cfg.API.ConnectPath)
}

func TestLoad_BadDurationInFile(t *testing.T) {
	path := writeConfig(t, "api:\n  baseUrl: https://x.example.com\n  timeout: soon\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.timeout")
}
