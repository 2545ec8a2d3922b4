// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/presentation"
)

//go:embed web/index.html.tmpl web/static
var webFS embed.FS

func parsePage() (*template.Template, error) {
	return template.ParseFS(webFS, "web/index.html.tmpl")
}

type pageData struct {
	View    presentation.View
	CallURL string
}

// handlePage renders the call widget server-side so the first paint matches
// the current status; app.js takes over from the status stream.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		View:    presentation.Render(s.ctrl.Snapshot()),
		CallURL: s.config().API.CallURL(),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "page.render_failed").Msg("failed to render page")
		writeProblem(w, r, http.StatusInternalServerError, "render_failed", "failed to render page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
