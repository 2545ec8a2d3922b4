// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/version"
	"gopkg.in/yaml.v3"
)

// envConfigDir points at a directory holding config.yaml when -config is not given.
const envConfigDir = "VOICECAB_CONFIG_DIR"

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  voicecab config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  voicecab config dump [--file|-f config.yaml] [--format=yaml|json]")
}

func resolveDefaultConfigPath() string {
	dir := strings.TrimSpace(os.Getenv(envConfigDir))
	if dir == "" {
		return ""
	}
	autoPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func loadForCLI(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (config.AppConfig, string, int) {
	fs := flag.NewFlagSet("voicecab config "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return config.AppConfig{}, "", 2
	}

	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		source := configPath
		if source == "" {
			source = "environment"
		}
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", source, err)
		return cfg, configPath, 1
	}
	return cfg, configPath, 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	_, path, code := loadForCLI("validate", args, stderr, nil)
	if code != 0 {
		return code
	}
	if path == "" {
		path = "environment configuration"
	}
	fmt.Fprintf(stdout, "✓ %s is valid\n", path)
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	var format string
	cfg, _, code := loadForCLI("dump", args, stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	})
	if code != 0 {
		return code
	}

	fileCfg := fileConfigFromAppConfig(cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

// fileConfigFromAppConfig renders the effective configuration in file shape.
// The base URL is masked.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	var f config.FileConfig
	f.ListenAddr = cfg.ListenAddr
	f.MetricsListen = cfg.MetricsListen
	f.LogLevel = cfg.LogLevel
	f.LogService = cfg.LogService

	f.API.BaseURL = config.MaskURL(cfg.API.BaseURL)
	f.API.ConnectPath = cfg.API.ConnectPath
	f.API.CallPath = cfg.API.CallPath
	f.API.RequestData = cfg.API.RequestData
	f.API.Timeout = cfg.API.Timeout.String()

	f.CORS.AllowedOrigins = cfg.CORS.AllowedOrigins

	rlEnabled := cfg.RateLimit.Enabled
	f.RateLimit.Enabled = &rlEnabled
	f.RateLimit.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute

	trEnabled := cfg.Tracing.Enabled
	rate := cfg.Tracing.SamplingRate
	f.Tracing.Enabled = &trEnabled
	f.Tracing.Exporter = cfg.Tracing.Exporter
	f.Tracing.Endpoint = cfg.Tracing.Endpoint
	f.Tracing.SamplingRate = &rate

	f.Server.ReadTimeout = cfg.Server.ReadTimeout.String()
	f.Server.WriteTimeout = cfg.Server.WriteTimeout.String()
	f.Server.IdleTimeout = cfg.Server.IdleTimeout.String()
	f.Server.ShutdownTimeout = cfg.Server.ShutdownTimeout.String()
	f.Server.MaxHeaderBytes = cfg.Server.MaxHeaderBytes
	return f
}
