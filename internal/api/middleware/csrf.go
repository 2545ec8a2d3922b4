// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFProtection rejects state-changing requests whose Origin (or Referer) is
// neither same-origin nor in allowedOrigins. Requests carrying neither header
// are treated as non-browser clients and pass.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make(map[string]bool)
	for _, origin := range allowedOrigins {
		origins[strings.TrimSuffix(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			requestOrigin := getRequestOrigin(r)
			if requestOrigin != "" && !origins["*"] && !origins[requestOrigin] && !isSameOrigin(requestOrigin, r) {
				writeJSONError(w, r, http.StatusForbidden, "csrf_rejected", "Cross-origin request not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getRequestOrigin prefers Origin and falls back to the Referer's scheme+host.
func getRequestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Scheme + "://" + u.Host
}

func isSameOrigin(requestOrigin string, r *http.Request) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	if r.Host == "" {
		return false
	}
	return requestOrigin == scheme+"://"+r.Host
}
