// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package health serves the daemon's /healthz and /readyz endpoints.
//
// Liveness only says the process answers HTTP. Readiness runs every
// registered Checker: an unhealthy check (a fatal call error, a bad backend
// URL) makes the daemon unready, a degraded one (backend unreachable right
// now) is reported but keeps it ready.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/voicecab/internal/log"
	"golang.org/x/sync/errgroup"
)

// Status is the verdict of one check or of the whole daemon.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// CheckResult is what a single Checker reports.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker inspects one dependency of the call page.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager owns the registered checkers.
type Manager struct {
	version string

	mu       sync.RWMutex
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds c; checkers registered later run alongside earlier ones.
func (m *Manager) RegisterChecker(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// runChecks runs every checker concurrently and returns the results keyed by
// checker name together with the worst status seen. A nil map means no
// checker is registered.
func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()
	if len(checkers) == 0 {
		return nil, StatusHealthy
	}

	results := make([]CheckResult, len(checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = c.Check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]CheckResult, len(checkers))
	worst := StatusHealthy
	for i, c := range checkers {
		byName[c.Name()] = results[i]
		if results[i].Status.rank() > worst.rank() {
			worst = results[i].Status
		}
	}
	return byName, worst
}

// Health answers liveness. Checks only run when verbose is set, and even then
// the caller gets 200 from ServeHealth.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{Status: StatusHealthy, Version: m.version, Timestamp: time.Now()}
	if verbose {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready runs every checker. The per-check breakdown is only attached when
// verbose is set.
func (m *Manager) Ready(ctx context.Context, verbose bool) ReadinessResponse {
	checks, status := m.runChecks(ctx)
	resp := ReadinessResponse{
		Ready:     status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
	}
	if verbose {
		resp.Checks = checks
	}
	return resp
}

// ServeHealth always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	resp := m.Health(r.Context(), verbose(r))
	writeJSON(w, r, "health", http.StatusOK, resp, string(resp.Status))
}

// ServeReady answers 503 while any check is unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context(), verbose(r))
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, "readiness", code, resp, string(resp.Status))
}

func verbose(r *http.Request) bool {
	return r.URL.Query().Get("verbose") == "true"
}

func writeJSON(w http.ResponseWriter, r *http.Request, kind string, code int, body any, status string) {
	logger := log.WithComponentFromContext(r.Context(), kind)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, kind+".encode_error").Msg("failed to encode response")
		return
	}
	logger.Debug().
		Str(log.FieldEvent, kind+".checked").
		Str("status", status).
		Int("code", code).
		Msg("check served")
}
