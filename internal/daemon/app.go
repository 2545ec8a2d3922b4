// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/log"
	"github.com/rs/zerolog"
)

// Runner is a background loop owned by the daemon, such as the call controller.
type Runner interface {
	Run(ctx context.Context) error
}

// ConfigApplier receives every successfully reloaded configuration.
type ConfigApplier interface {
	UpdateConfig(cfg config.AppConfig)
}

// App owns the long-lived runtime lifecycle (controller loop, config watcher,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	applier      ConfigApplier
	runners      []Runner
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder and applier may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, applier ConfigApplier, runners ...Runner) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		applier:      applier,
		runners:      runners,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, r := range a.runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.cfgHolder.Stop()

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

func (a *App) apply(cfg config.AppConfig) {
	if cfg.LogLevel != "" && !log.SetLevel(cfg.LogLevel) {
		a.logger.Warn().
			Str("event", "config.invalid_log_level").
			Str("level", cfg.LogLevel).
			Msg("ignoring unparsable log level")
	}
	if a.applier != nil {
		a.applier.UpdateConfig(cfg)
	}
}
