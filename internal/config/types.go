// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string

	ListenAddr    string
	MetricsListen string
	LogLevel      string
	LogService    string

	API       APIConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Server    ServerRuntimeConfig
}

// APIConfig points at the remote call-handling backend.
type APIConfig struct {
	// BaseURL is the backend origin, e.g. "https://calls.example.com".
	BaseURL string
	// ConnectPath is appended to BaseURL for session bootstrap.
	ConnectPath string
	// CallPath is the generic call endpoint (redirects to a room).
	CallPath string
	// RequestData is sent verbatim as the bootstrap request body.
	RequestData map[string]any
	// Timeout bounds a single connect or disconnect request.
	Timeout time.Duration
}

// ConnectURL returns the absolute bootstrap endpoint.
func (a APIConfig) ConnectURL() string { return joinURL(a.BaseURL, a.ConnectPath) }

// CallURL returns the absolute generic call endpoint.
func (a APIConfig) CallURL() string { return joinURL(a.BaseURL, a.CallPath) }

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string // grpc|http
	Endpoint     string
	SamplingRate float64
}

// ServerRuntimeConfig holds HTTP server timeouts as loaded from file/env.
type ServerRuntimeConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// FileConfig is the on-disk YAML shape. Pointer fields distinguish "unset" from zero.
type FileConfig struct {
	ListenAddr    string `yaml:"listenAddr,omitempty"`
	MetricsListen string `yaml:"metricsListen,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty"`
	LogService    string `yaml:"logService,omitempty"`

	API struct {
		BaseURL     string         `yaml:"baseUrl,omitempty"`
		ConnectPath string         `yaml:"connectPath,omitempty"`
		CallPath    string         `yaml:"callPath,omitempty"`
		RequestData map[string]any `yaml:"requestData,omitempty"`
		Timeout     string         `yaml:"timeout,omitempty"`
	} `yaml:"api,omitempty"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	} `yaml:"cors,omitempty"`

	RateLimit struct {
		Enabled           *bool `yaml:"enabled,omitempty"`
		RequestsPerMinute int   `yaml:"requestsPerMinute,omitempty"`
	} `yaml:"rateLimit,omitempty"`

	Tracing struct {
		Enabled      *bool    `yaml:"enabled,omitempty"`
		Exporter     string   `yaml:"exporter,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	} `yaml:"tracing,omitempty"`

	Server struct {
		ReadTimeout     string `yaml:"readTimeout,omitempty"`
		WriteTimeout    string `yaml:"writeTimeout,omitempty"`
		IdleTimeout     string `yaml:"idleTimeout,omitempty"`
		ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
		MaxHeaderBytes  int    `yaml:"maxHeaderBytes,omitempty"`
	} `yaml:"server,omitempty"`
}
