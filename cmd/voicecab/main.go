// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/voicecab/internal/api"
	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/controller"
	"github.com/ManuGH/voicecab/internal/daemon"
	"github.com/ManuGH/voicecab/internal/health"
	xglog "github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/rtvi"
	"github.com/ManuGH/voicecab/internal/telemetry"
	"github.com/ManuGH/voicecab/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "voicecab",
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	// Precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger = xglog.WithComponent("daemon")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration.")
	}

	serverCfg := config.ServerConfigFor(cfg)

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting voicecab")
	logger.Info().Msgf("→ Backend: %s", config.MaskURL(cfg.API.BaseURL))
	logger.Info().Msgf("→ Bootstrap: %s (timeout %s)", config.MaskURL(cfg.API.ConnectURL()), cfg.API.Timeout)
	if cfg.RateLimit.Enabled {
		logger.Info().Msgf("→ Rate limit: %d req/min on call actions", cfg.RateLimit.RequestsPerMinute)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}

	eventBus := bus.NewMemoryBus()

	client, err := rtvi.New(rtvi.Config{
		Bootstrap: rtvi.NewHTTPBootstrapper(cfg.API.ConnectURL(), cfg.API.RequestData, nil),
		Transport: rtvi.NewWebSocketTransport(),
		Bus:       eventBus,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "client.creation.failed").Msg("failed to create voice client")
	}

	ctrl, err := controller.New(client, eventBus, controller.WithRequestTimeout(cfg.API.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Str("event", "controller.creation.failed").Msg("failed to create call controller")
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewCallSessionChecker(ctrl.Snapshot))
	hm.RegisterChecker(health.NewBackendChecker(cfg.API.BaseURL, 0))

	// Metrics share the API listener unless a dedicated address is configured.
	metricsAddr := strings.TrimSpace(cfg.MetricsListen)
	apiDeps := api.Deps{
		Config:     cfg,
		Controller: ctrl,
		Health:     hm,
	}
	if metricsAddr == "" {
		apiDeps.MetricsHandler = promhttp.Handler()
	}
	s, err := api.New(apiDeps)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "api.creation.failed").Msg("failed to create API server")
	}

	deps := daemon.Deps{
		Logger:      logger,
		Config:      cfg,
		APIHandler:  s.Handler(),
		MetricsAddr: metricsAddr,
	}
	if metricsAddr != "" {
		deps.MetricsHandler = promhttp.Handler()
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Hooks run LIFO: status sockets first, telemetry last.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("bus", func(context.Context) error { return eventBus.Close() })
	mgr.RegisterShutdownHook("voice_client", func(context.Context) error { return client.Close() })
	mgr.RegisterShutdownHook("controller", func(context.Context) error { return ctrl.Close() })
	mgr.RegisterShutdownHook("status_streams", s.Shutdown)

	cfgHolder := config.NewHolder(cfg, loader)
	app := daemon.NewApp(logger, mgr, cfgHolder, s, ctrl)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}
