// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadNotifiesListeners(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "")
	path := writeConfig(t, "logLevel: info\napi:\n  baseUrl: https://calls.example.com\n")

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\napi:\n  baseUrl: https://calls.example.com\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	select {
	case got := <-ch:
		assert.Equal(t, "debug", got.LogLevel)
	default:
		t.Fatal("listener not notified")
	}
	assert.Equal(t, "debug", h.Get().LogLevel)
}

func TestHolder_InvalidReloadKeepsPrevious(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "")
	path := writeConfig(t, "api:\n  baseUrl: https://calls.example.com\n")

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("api:\n  baseUrl: nope\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "https://calls.example.com", h.Get().API.BaseURL)
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvLegacyBaseURL, "")
	path := writeConfig(t, "logLevel: info\napi:\n  baseUrl: https://calls.example.com\n")

	loader := NewLoader(path, "")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\napi:\n  baseUrl: https://calls.example.com\n"), 0o600))
	require.Eventually(t, func() bool { return h.Get().LogLevel == "warn" }, 5*time.Second, 50*time.Millisecond)
}

func TestHolder_WatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(validConfig(), NewLoader("", ""))
	require.NoError(t, h.StartWatcher(context.Background()))
}
