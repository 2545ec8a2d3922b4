// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/config"
	"github.com/ManuGH/voicecab/internal/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func testServerConfig(addr string) config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     5 * time.Second,
		MaxHeaderBytes:  1 << 16,
		ShutdownTimeout: 2 * time.Second,
	}
}

func callPageDeps() Deps {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	})
	return Deps{Logger: log.WithComponent("test"), APIHandler: mux}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = client.Get(url)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "nothing answered at %s", url)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// hookRecorder registers the same hooks main wires, in the same order.
type hookRecorder struct {
	mu    sync.Mutex
	order []string
	fail  map[string]error
}

func (r *hookRecorder) hook(name string, fn func() error) ShutdownHook {
	return func(context.Context) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		err := r.fail[name]
		r.mu.Unlock()
		if fn != nil {
			if ferr := fn(); ferr != nil {
				return ferr
			}
		}
		return err
	}
}

func (r *hookRecorder) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func registerCallHooks(mgr Manager, rec *hookRecorder, eventBus *bus.MemoryBus) {
	mgr.RegisterShutdownHook("telemetry", rec.hook("telemetry", nil))
	mgr.RegisterShutdownHook("bus", rec.hook("bus", eventBus.Close))
	mgr.RegisterShutdownHook("voice_client", rec.hook("voice_client", nil))
	mgr.RegisterShutdownHook("controller", rec.hook("controller", nil))
	mgr.RegisterShutdownHook("status_streams", rec.hook("status_streams", nil))
}

func TestNewManagerValidatesDeps(t *testing.T) {
	_, err := NewManager(testServerConfig("127.0.0.1:0"), Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(testServerConfig("127.0.0.1:0"), Deps{Logger: log.WithComponent("test")})
	require.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestShutdownTearsDownCallStackInReverse(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := freeAddr(t)
	mgr, err := NewManager(testServerConfig(addr), callPageDeps())
	require.NoError(t, err)

	eventBus := bus.NewMemoryBus()
	rec := &hookRecorder{}
	registerCallHooks(mgr, rec, eventBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	code, body := get(t, "http://"+addr+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "healthy")
	assert.Empty(t, rec.ran(), "no hook runs while serving")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	assert.Equal(t, []string{"status_streams", "controller", "voice_client", "bus", "telemetry"}, rec.ran())
	_, err = eventBus.Subscribe(context.Background(), bus.TopicCallModel)
	assert.ErrorIs(t, err, bus.ErrClosed)

	require.NoError(t, mgr.Shutdown(context.Background()), "a second shutdown is a no-op")
	assert.Len(t, rec.ran(), 5)
}

func TestShutdownKeepsGoingPastFailingHook(t *testing.T) {
	addr := freeAddr(t)
	mgr, err := NewManager(testServerConfig(addr), callPageDeps())
	require.NoError(t, err)

	errClient := errors.New("room leave timed out")
	rec := &hookRecorder{fail: map[string]error{"voice_client": errClient}}
	registerCallHooks(mgr, rec, bus.NewMemoryBus())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	get(t, "http://"+addr+"/healthz")
	cancel()

	err = <-done
	require.ErrorIs(t, err, errClient)
	assert.Contains(t, err.Error(), "hook voice_client")
	assert.Equal(t, []string{"status_streams", "controller", "voice_client", "bus", "telemetry"}, rec.ran())
}

func TestMetricsServerOnDedicatedAddr(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	deps := callPageDeps()
	deps.MetricsHandler = promhttp.Handler()
	deps.MetricsAddr = freeAddr(t)
	addr := freeAddr(t)
	mgr, err := NewManager(testServerConfig(addr), deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	code, body := get(t, "http://"+deps.MetricsAddr+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")

	code, _ = get(t, "http://"+addr+"/metrics")
	assert.Equal(t, http.StatusNotFound, code, "metrics stay off the page listener")

	cancel()
	require.NoError(t, <-done)
}

func TestStartFailsWhenListenAddrTaken(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	mgr, err := NewManager(testServerConfig(l.Addr().String()), callPageDeps())
	require.NoError(t, err)
	rec := &hookRecorder{}
	registerCallHooks(mgr, rec, bus.NewMemoryBus())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = mgr.Start(ctx)
	require.ErrorIs(t, err, ErrServerStartFailed)
	assert.Len(t, rec.ran(), 5, "a failed start still releases the call stack")

	require.Error(t, mgr.Start(context.Background()), "a manager starts once")
}

func TestShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testServerConfig("127.0.0.1:0"), callPageDeps())
	require.NoError(t, err)
	require.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}
