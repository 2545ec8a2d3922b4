// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/log"
)

// PerformStartupChecks validates runtime-critical settings before the servers
// start. An unreachable backend is logged, not fatal.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	for name, addr := range map[string]string{"listenAddr": cfg.ListenAddr, "metricsListen": cfg.MetricsListen} {
		if addr == "" {
			continue
		}
		if err := checkListenAddr(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.MetricsListen != "" && cfg.MetricsListen == cfg.ListenAddr {
		return fmt.Errorf("metricsListen must differ from listenAddr (%s)", cfg.ListenAddr)
	}

	res := NewBackendChecker(cfg.API.BaseURL, 0).Check(ctx)
	evt := logger.Info()
	if res.Status != StatusHealthy {
		evt = logger.Warn().Str("error", res.Error)
	}
	evt.Str(log.FieldEvent, "startup.backend_check").
		Str(log.FieldBaseURL, config.MaskURL(cfg.API.BaseURL)).
		Str("status", string(res.Status)).
		Msg("call backend reachability")

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}

func checkListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}
