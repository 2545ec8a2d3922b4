// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the call page, the call status API and its WebSocket push.
package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/health"
	"github.com/ManuGH/voicecab/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var (
	// ErrMissingController is returned by New without a call controller.
	ErrMissingController = errors.New("api: call controller is required")
	// ErrMissingHealth is returned by New without a health manager.
	ErrMissingHealth = errors.New("api: health manager is required")
)

// CallController is the part of the controller the API drives.
type CallController interface {
	Snapshot() callstate.Model
	Subscribe(ctx context.Context) (bus.Subscriber, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Deps wires a Server.
type Deps struct {
	Config     config.AppConfig
	Controller CallController
	Health     *health.Manager
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// Server owns the HTTP router and the status WebSocket connections.
type Server struct {
	ctrl    CallController
	health  *health.Manager
	metrics http.Handler
	page    *template.Template

	mu  sync.RWMutex
	cfg config.AppConfig

	upgrader websocket.Upgrader

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wsWG       sync.WaitGroup

	router chi.Router
}

// New builds the server and its routes.
func New(deps Deps) (*Server, error) {
	if deps.Controller == nil {
		return nil, ErrMissingController
	}
	if deps.Health == nil {
		return nil, ErrMissingHealth
	}
	page, err := parsePage()
	if err != nil {
		return nil, fmt.Errorf("api: parse page template: %w", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	s := &Server{
		ctrl:       deps.Controller,
		health:     deps.Health,
		metrics:    deps.MetricsHandler,
		page:       page,
		cfg:        deps.Config,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// UpdateConfig swaps the runtime config used by handlers. Router-level settings
// (CORS, rate limit) keep the values from construction.
func (s *Server) UpdateConfig(cfg config.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logger := log.WithComponent("api")
	logger.Info().
		Str(log.FieldEvent, "api.config_applied").
		Str("call_url", config.MaskURL(cfg.API.CallURL())).
		Msg("api config updated")
}

func (s *Server) config() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Shutdown closes every status WebSocket and waits for their writers.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}
	s.rootCancel()

	done := make(chan struct{})
	go func() {
		s.wsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("api: waiting for status streams: %w", ctx.Err())
	}
}
