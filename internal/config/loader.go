// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr  = ":8088"
	DefaultConnectPath = "/call/connect"
	DefaultCallPath    = "/call"
	DefaultAPITimeout  = 10 * time.Second
	DefaultRPM         = 60

	// EnvBaseURL is the primary base-URL variable; EnvLegacyBaseURL is the
	// variable the old browser build read.
	EnvBaseURL       = "VOICECAB_API_URL"
	EnvLegacyBaseURL = "VITE_APP_API_URL"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the YAML file path, empty when running env-only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envSlice(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringSlice(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: DefaultListenAddr,
		LogLevel:   "info",
		LogService: "voicecab",
		API: APIConfig{
			ConnectPath: DefaultConnectPath,
			CallPath:    DefaultCallPath,
			RequestData: map[string]any{},
			Timeout:     DefaultAPITimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: DefaultRPM,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Server: ServerRuntimeConfig{
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			MaxHeaderBytes:  defaultMaxHeaderBytes,
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error wrapping ErrUnknownConfigField.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	return NewLoader(path, "").loadFile(path)
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.MetricsListen, f.MetricsListen)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)

	setString(&cfg.API.BaseURL, f.API.BaseURL)
	setString(&cfg.API.ConnectPath, f.API.ConnectPath)
	setString(&cfg.API.CallPath, f.API.CallPath)
	if f.API.RequestData != nil {
		cfg.API.RequestData = f.API.RequestData
	}
	if err := setDuration(&cfg.API.Timeout, "api.timeout", f.API.Timeout); err != nil {
		return err
	}

	if len(f.CORS.AllowedOrigins) > 0 {
		cfg.CORS.AllowedOrigins = append([]string(nil), f.CORS.AllowedOrigins...)
	}

	if f.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *f.RateLimit.Enabled
	}
	if f.RateLimit.RequestsPerMinute != 0 {
		cfg.RateLimit.RequestsPerMinute = f.RateLimit.RequestsPerMinute
	}

	if f.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *f.Tracing.Enabled
	}
	setString(&cfg.Tracing.Exporter, f.Tracing.Exporter)
	setString(&cfg.Tracing.Endpoint, f.Tracing.Endpoint)
	if f.Tracing.SamplingRate != nil {
		cfg.Tracing.SamplingRate = *f.Tracing.SamplingRate
	}

	for _, d := range []struct {
		dst  *time.Duration
		name string
		raw  string
	}{
		{&cfg.Server.ReadTimeout, "server.readTimeout", f.Server.ReadTimeout},
		{&cfg.Server.WriteTimeout, "server.writeTimeout", f.Server.WriteTimeout},
		{&cfg.Server.IdleTimeout, "server.idleTimeout", f.Server.IdleTimeout},
		{&cfg.Server.ShutdownTimeout, "server.shutdownTimeout", f.Server.ShutdownTimeout},
	} {
		if err := setDuration(d.dst, d.name, d.raw); err != nil {
			return err
		}
	}
	if f.Server.MaxHeaderBytes > 0 {
		cfg.Server.MaxHeaderBytes = f.Server.MaxHeaderBytes
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.ListenAddr = l.envString("VOICECAB_LISTEN", cfg.ListenAddr)
	cfg.MetricsListen = l.envString("VOICECAB_METRICS_LISTEN", cfg.MetricsListen)
	cfg.LogLevel = l.envString("VOICECAB_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("VOICECAB_LOG_SERVICE", cfg.LogService)

	l.ConsumedEnvKeys[EnvBaseURL] = struct{}{}
	l.ConsumedEnvKeys[EnvLegacyBaseURL] = struct{}{}
	cfg.API.BaseURL = ParseStringWithAlias(EnvBaseURL, EnvLegacyBaseURL, cfg.API.BaseURL)
	cfg.API.ConnectPath = l.envString("VOICECAB_CONNECT_PATH", cfg.API.ConnectPath)
	cfg.API.CallPath = l.envString("VOICECAB_CALL_PATH", cfg.API.CallPath)
	cfg.API.Timeout = l.envDuration("VOICECAB_API_TIMEOUT", cfg.API.Timeout)

	cfg.CORS.AllowedOrigins = l.envSlice("VOICECAB_CORS_ORIGINS", cfg.CORS.AllowedOrigins)

	cfg.RateLimit.Enabled = l.envBool("VOICECAB_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt("VOICECAB_RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)

	cfg.Tracing.Enabled = l.envBool("VOICECAB_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("VOICECAB_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("VOICECAB_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat("VOICECAB_TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)

	cfg.Server.ReadTimeout = l.envDuration("VOICECAB_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("VOICECAB_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("VOICECAB_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("VOICECAB_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.MaxHeaderBytes = l.envInt("VOICECAB_SERVER_MAX_HEADER_BYTES", cfg.Server.MaxHeaderBytes)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setDuration(dst *time.Duration, name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func joinURL(base, path string) string {
	if path == "" {
		return strings.TrimRight(base, "/")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
