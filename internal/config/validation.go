// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks a resolved configuration. All problems are reported at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		add("api.baseUrl is required (set %s)", EnvBaseURL)
	} else if u, err := url.Parse(cfg.API.BaseURL); err != nil {
		add("api.baseUrl: %v", err)
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.baseUrl must be an absolute http(s) URL, got %q", MaskURL(cfg.API.BaseURL))
	}

	if !strings.HasPrefix(cfg.API.ConnectPath, "/") {
		add("api.connectPath must start with '/', got %q", cfg.API.ConnectPath)
	}
	if cfg.API.CallPath != "" && !strings.HasPrefix(cfg.API.CallPath, "/") {
		add("api.callPath must start with '/', got %q", cfg.API.CallPath)
	}
	if cfg.API.Timeout <= 0 {
		add("api.timeout must be positive, got %s", cfg.API.Timeout)
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		add("listenAddr is required")
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			add("logLevel: %v", err)
		}
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute <= 0 {
		add("rateLimit.requestsPerMinute must be positive when rate limiting is enabled")
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case "grpc", "http":
		default:
			add("tracing.exporter must be grpc or http, got %q", cfg.Tracing.Exporter)
		}
		if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
			add("tracing.endpoint is required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		add("tracing.samplingRate must be within [0,1], got %v", cfg.Tracing.SamplingRate)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
