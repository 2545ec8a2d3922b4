// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/voicecab/internal/log"
)

// Problem is the JSON error body returned by every handler.
type Problem struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Debug().Err(err).Msg("failed to encode response")
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, errCode, detail string) {
	writeJSON(w, code, Problem{
		Error:     errCode,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
