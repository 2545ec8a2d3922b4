// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"io/fs"
	"net/http"

	"github.com/ManuGH/voicecab/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() chi.Router {
	cfg := s.config()
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.CORS.AllowedOrigins,
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        "voicecab-api",
		EnableLogging:         true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/", s.handlePage)
	static, _ := fs.Sub(webFS, "web/static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Route("/api/call", func(r chi.Router) {
		r.Get("/", s.handleGetCall)
		r.Get("/ws", s.handleStatusStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFProtection(cfg.CORS.AllowedOrigins))
			if cfg.RateLimit.Enabled {
				r.Use(middleware.CallRateLimit(cfg.RateLimit.RequestsPerMinute))
			}
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
		})
	})
	return r
}
