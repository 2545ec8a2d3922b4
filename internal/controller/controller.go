// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package controller owns the voice client handle and derives the call
// session status from the events it emits.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/ManuGH/voicecab/internal/config"
	xglog "github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/metrics"
	"github.com/ManuGH/voicecab/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRequestTimeout = config.DefaultAPITimeout
	DefaultPublishTimeout = 2 * time.Second

	actionConnect    = "connect"
	actionDisconnect = "disconnect"
)

var (
	// ErrNoClient is returned by New when no client handle is supplied.
	ErrNoClient = errors.New("controller: client handle is required")
	// ErrNoBus is returned by New when no event bus is supplied.
	ErrNoBus = errors.New("controller: bus is required")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller: closed")
)

// Client is the voice client handle the controller drives.
type Client interface {
	InitDevices(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithRequestTimeout bounds each background client call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithPublishTimeout bounds each publish on the bus.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// Controller applies client events to the call model. Client events are
// reduced in the order they were published; a local disconnect is applied
// synchronously by Disconnect.
type Controller struct {
	client         Client
	bus            bus.Bus
	events         bus.Subscriber
	requestTimeout time.Duration
	publishTimeout time.Duration
	logger         zerolog.Logger

	applyMu sync.Mutex // serializes reduce and publish so models go out in order
	mu      sync.RWMutex
	model   callstate.Model

	lifecycle context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New subscribes to the client event topic and returns a controller in the
// initial state. Call Run to start applying events.
func New(client Client, b bus.Bus, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if b == nil {
		return nil, ErrNoBus
	}

	c := &Controller{
		client:         client,
		bus:            b,
		requestTimeout: DefaultRequestTimeout,
		publishTimeout: DefaultPublishTimeout,
		logger:         xglog.WithComponent("controller"),
		model:          callstate.Initial(),
	}
	for _, opt := range opts {
		opt(c)
	}

	events, err := b.Subscribe(context.Background(), bus.TopicClientEvents)
	if err != nil {
		return nil, fmt.Errorf("controller: subscribe client events: %w", err)
	}
	c.events = events
	c.lifecycle, c.cancel = context.WithCancel(context.Background())

	metrics.SetCallStatus(string(c.model.Status), statusLabels())
	metrics.SetCallFailed(false)
	return c, nil
}

// Run drains the event queue until ctx ends or the controller is closed.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.lifecycle.Done():
			return nil
		case msg, ok := <-c.events.C():
			if !ok {
				return nil
			}
			ev, isEvent := msg.(callstate.Event)
			if !isEvent {
				c.logger.Warn().Str(xglog.FieldEvent, "call.unknown_message").
					Str("type", fmt.Sprintf("%T", msg)).
					Msg("dropping non-event message")
				continue
			}
			c.apply(ev)
		}
	}
}

func (c *Controller) apply(ev callstate.Event) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	prev := c.model
	next := callstate.Reduce(prev, ev)
	c.model = next
	c.mu.Unlock()

	switch e := ev.(type) {
	case callstate.TransportStateChanged:
		c.logger.Debug().Str(xglog.FieldEvent, "call.transport_state").
			Str(xglog.FieldTransportState, string(e.State)).
			Msg("transport state changed")
	case callstate.ErrorReported:
		metrics.IncCallError(e.Fatal)
		logEv := c.logger.Warn()
		if e.Fatal {
			logEv = c.logger.Error()
		}
		logEv.Str(xglog.FieldEvent, "call.error").
			Bool(xglog.FieldFatal, e.Fatal).
			Str("error", e.Message).
			Msg("client reported error")
	}

	if next == prev {
		return
	}

	metrics.SetCallStatus(string(next.Status), statusLabels())
	metrics.SetCallFailed(next.Failed())
	c.logger.Info().Str(xglog.FieldEvent, "call.status_changed").
		Str(xglog.FieldOldStatus, string(prev.Status)).
		Str(xglog.FieldNewStatus, string(next.Status)).
		Bool(xglog.FieldFatal, next.Failed()).
		Msg("call status changed")

	ctx, cancel := context.WithTimeout(c.lifecycle, c.publishTimeout)
	defer cancel()
	if err := c.bus.Publish(ctx, bus.TopicCallModel, next); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "call.publish_failed").Msg("failed to publish call model")
	}
}

// Snapshot returns the current model.
func (c *Controller) Snapshot() callstate.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Subscribe returns a subscription to model changes. It ends with ctx.
func (c *Controller) Subscribe(ctx context.Context) (bus.Subscriber, error) {
	return c.bus.Subscribe(ctx, bus.TopicCallModel)
}

// Connect asks the client to initialise devices and connect. It does not touch
// the model and returns before the client does; outcomes arrive as events.
func (c *Controller) Connect(ctx context.Context) error {
	if c.lifecycle.Err() != nil {
		return ErrClosed
	}
	logger := xglog.WithContext(ctx, c.logger)
	logger.Info().Str(xglog.FieldEvent, "call.connect_requested").Msg("connect requested")

	c.spawn(ctx, actionConnect, logger, func(callCtx context.Context) error {
		if err := c.client.InitDevices(callCtx); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "call.init_devices_failed").Msg("device init failed")
		}
		return c.client.Connect(callCtx)
	})
	return nil
}

// Disconnect forces the status to ready before it returns and then asks the
// client to leave the room in the background. A transport event already in
// flight may still land after the forced ready.
func (c *Controller) Disconnect(ctx context.Context) error {
	if c.lifecycle.Err() != nil {
		return ErrClosed
	}
	logger := xglog.WithContext(ctx, c.logger)
	logger.Info().Str(xglog.FieldEvent, "call.disconnect_requested").Msg("disconnect requested")

	c.apply(callstate.DisconnectRequested{})
	c.spawn(ctx, actionDisconnect, logger, c.client.Disconnect)
	return nil
}

// spawn runs a client call in the background under the request timeout. The
// call outlives reqCtx but keeps its request ID. The outcome is only logged,
// counted and traced.
func (c *Controller) spawn(reqCtx context.Context, action string, logger zerolog.Logger, fn func(ctx context.Context) error) {
	status := string(c.Snapshot().Status)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(xglog.CarryIDs(c.lifecycle, reqCtx), c.requestTimeout)
		defer cancel()

		ctx, span := telemetry.Tracer("voicecab/controller").Start(ctx, "call."+action,
			trace.WithAttributes(telemetry.CallAttributes(action, status)...))
		defer span.End()

		err := fn(ctx)
		metrics.IncCallRequest(action, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn().Err(err).Str(xglog.FieldEvent, "call."+action+"_failed").Msg("client request failed")
		}
	}()
}

// Close stops Run, cancels in-flight client calls and waits for them.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		_ = c.events.Close()
	})
	return nil
}

func statusLabels() []string {
	out := make([]string, len(callstate.AllStatuses))
	for i, s := range callstate.AllStatuses {
		out[i] = string(s)
	}
	return out
}
