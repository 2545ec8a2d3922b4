// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	xglog "github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// headerRequestID forwards the ID of the page request that asked for the call.
const headerRequestID = "X-Request-ID"

// maxBootstrapBody caps how much of a bootstrap response is read.
const maxBootstrapBody = 1 << 20

// Session is the transport bundle returned by the bootstrap endpoint.
// Fields other than room_url and token are kept verbatim in Raw.
type Session struct {
	RoomURL string          `json:"room_url"`
	Token   string          `json:"token"`
	Raw     json.RawMessage `json:"-"`
}

// SessionStarter asks the backend for a new call session.
type SessionStarter interface {
	Start(ctx context.Context) (Session, error)
}

// HTTPBootstrapper posts requestData to the connect endpoint.
type HTTPBootstrapper struct {
	endpoint    string
	requestData map[string]any
	httpClient  *http.Client
}

// NewHTTPBootstrapper builds a bootstrapper. A nil httpClient gets an
// OpenTelemetry-instrumented default.
func NewHTTPBootstrapper(endpoint string, requestData map[string]any, httpClient *http.Client) *HTTPBootstrapper {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if requestData == nil {
		requestData = map[string]any{}
	}
	return &HTTPBootstrapper{endpoint: endpoint, requestData: requestData, httpClient: httpClient}
}

// Endpoint returns the absolute bootstrap URL.
func (b *HTTPBootstrapper) Endpoint() string { return b.endpoint }

func (b *HTTPBootstrapper) Start(ctx context.Context) (sess Session, err error) {
	start := time.Now()
	defer func() { metrics.ObserveBootstrap(time.Since(start).Seconds(), err) }()

	body, err := json.Marshal(b.requestData)
	if err != nil {
		return Session{}, fmt.Errorf("rtvi: encode request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("rtvi: build bootstrap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := xglog.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(headerRequestID, id)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("rtvi: bootstrap request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBootstrapBody))
	if err != nil {
		return Session{}, fmt.Errorf("rtvi: read bootstrap response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, &BootstrapError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("rtvi: decode bootstrap response: %w", err)
	}
	if sess.RoomURL == "" {
		return Session{}, ErrInvalidSession
	}
	sess.Raw = raw
	return sess, nil
}

// errorDetail extracts a FastAPI-style {"detail": "..."} message, falling back
// to a truncated body.
func errorDetail(raw []byte) string {
	var body struct {
		Detail any `json:"detail"`
		Error  any `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		for _, v := range []any{body.Detail, body.Error} {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	const limit = 256
	s := string(bytes.TrimSpace(raw))
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
