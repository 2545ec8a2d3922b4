// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/voicecab/internal/log"
)

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     code,
		"detail":    detail,
		"requestId": xglog.RequestIDFromContext(r.Context()),
	})
}
