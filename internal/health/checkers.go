// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ManuGH/voicecab/internal/callstate"
)

// CallSessionChecker reports the call session. A recorded fatal error makes
// the daemon unready: the page cannot recover without a restart.
type CallSessionChecker struct {
	snapshot func() callstate.Model
}

// NewCallSessionChecker creates a checker reading the live model.
func NewCallSessionChecker(snapshot func() callstate.Model) *CallSessionChecker {
	return &CallSessionChecker{snapshot: snapshot}
}

func (c *CallSessionChecker) Name() string {
	return "call_session"
}

func (c *CallSessionChecker) Check(_ context.Context) CheckResult {
	m := c.snapshot()
	if m.Failed() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "fatal error recorded",
			Error:   m.FatalError,
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "status " + string(m.Status),
	}
}

// BackendChecker dials the call backend's host. An unreachable backend only
// degrades readiness: the page still renders and reports the failure on click.
type BackendChecker struct {
	baseURL string
	timeout time.Duration
	dialer  func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewBackendChecker creates a reachability checker for baseURL.
func NewBackendChecker(baseURL string, timeout time.Duration) *BackendChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := &net.Dialer{}
	return &BackendChecker{baseURL: baseURL, timeout: timeout, dialer: d.DialContext}
}

func (c *BackendChecker) Name() string {
	return "call_backend"
}

func (c *BackendChecker) Check(ctx context.Context) CheckResult {
	addr, err := hostPort(c.baseURL)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := c.dialer(ctx, "tcp", addr)
	if err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "backend unreachable",
			Error:   err.Error(),
		}
	}
	_ = conn.Close()
	return CheckResult{Status: StatusHealthy, Message: "backend reachable"}
}

func hostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("backend url %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
