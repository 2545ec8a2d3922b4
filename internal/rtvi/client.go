// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/callstate"
	xglog "github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPublishTimeout bounds a single event publish.
const DefaultPublishTimeout = 2 * time.Second

// Config wires a Client.
type Config struct {
	Bootstrap      SessionStarter
	Transport      Transport
	Devices        Devices
	Bus            bus.Bus
	PublishTimeout time.Duration
}

// Client is the voice client handle. It owns at most one room connection and
// publishes every transport state change and error report on
// bus.TopicClientEvents.
type Client struct {
	bootstrap      SessionStarter
	transport      Transport
	devices        Devices
	bus            bus.Bus
	publishTimeout time.Duration

	mu         sync.Mutex
	gen        uint64 // bumped by Disconnect; every publish from Connect or a read loop checks it
	connecting bool
	cancel     context.CancelFunc
	conn       Conn
	sessionID  string

	emitMu sync.Mutex // serializes state changes with their publication
	state  callstate.TransportState

	wg sync.WaitGroup
}

// New validates cfg and returns a disconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.Bootstrap == nil {
		return nil, fmt.Errorf("%w: bootstrap", ErrMissingDependency)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: transport", ErrMissingDependency)
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("%w: bus", ErrMissingDependency)
	}
	if cfg.Devices == nil {
		cfg.Devices = NopDevices{}
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &Client{
		bootstrap:      cfg.Bootstrap,
		transport:      cfg.Transport,
		devices:        cfg.Devices,
		bus:            cfg.Bus,
		publishTimeout: cfg.PublishTimeout,
		state:          callstate.TransportDisconnected,
	}, nil
}

// State returns the last published transport state.
func (c *Client) State() callstate.TransportState {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	return c.state
}

// SessionID returns the id of the current or last session attempt.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// InitDevices prepares capture devices. A failure is reported as a non-fatal
// error and returned to the caller.
func (c *Client) InitDevices(ctx context.Context) error {
	c.setState(callstate.TransportInitializing)
	if err := c.devices.Init(ctx); err != nil {
		c.setState(callstate.TransportError)
		c.emit(callstate.ErrorReported{Message: err.Error(), Fatal: false})
		return fmt.Errorf("rtvi: init devices: %w", err)
	}
	c.setState(callstate.TransportInitialized)
	return nil
}

// Connect bootstraps a session and joins its room. It returns once the room is
// joined; readiness of the remote agent is reported asynchronously. Any
// failure is published as a fatal error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connecting || c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	c.connecting = true
	c.cancel = cancel
	c.sessionID = uuid.NewString()
	gen := c.gen
	sessionID := c.sessionID
	c.mu.Unlock()
	defer cancel()

	ctx = xglog.ContextWithSessionID(ctx, sessionID)
	logger := xglog.WithComponentFromContext(ctx, "rtvi")

	if !c.setStateIfOwned(gen, callstate.TransportAuthenticating) {
		return context.Canceled
	}
	sess, err := c.bootstrap.Start(ctx)
	if err != nil {
		return c.fail(gen, fmt.Errorf("start session: %w", err))
	}
	logger.Debug().Str(xglog.FieldRoomURL, sess.RoomURL).Msg("session bootstrapped")

	if !c.setStateIfOwned(gen, callstate.TransportConnecting) {
		return context.Canceled
	}
	conn, err := c.transport.Dial(ctx, sess)
	if err != nil {
		return c.fail(gen, err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = conn.Close()
		return context.Canceled
	}
	c.conn = conn
	c.connecting = false
	c.cancel = nil
	c.mu.Unlock()

	if !c.setStateIfOwned(gen, callstate.TransportConnected) {
		// Disconnect took the connection between the swap and here and closed it.
		return context.Canceled
	}
	logger.Info().Msg("room joined")

	if err := conn.Send(Message{Type: MessageClientReady, ID: uuid.NewString()}); err != nil {
		c.detach(gen, conn)
		return c.fail(gen, fmt.Errorf("rtvi: send client-ready: %w", err))
	}

	c.wg.Add(1)
	go c.readLoop(gen, conn, logger)
	return nil
}

// Disconnect leaves the room, aborting an in-flight Connect.
func (c *Client) Disconnect(_ context.Context) error {
	c.mu.Lock()
	c.gen++
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.connecting = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.setState(callstate.TransportDisconnecting)
	var err error
	if conn != nil {
		_ = conn.Send(Message{Type: MessageDisconnectBot, ID: uuid.NewString()})
		err = conn.Close()
	}
	c.setState(callstate.TransportDisconnected)
	if err != nil {
		return fmt.Errorf("rtvi: close room: %w", err)
	}
	return nil
}

// Close disconnects and waits for the read loop to exit.
func (c *Client) Close() error {
	err := c.Disconnect(context.Background())
	c.wg.Wait()
	return err
}

func (c *Client) readLoop(gen uint64, conn Conn, logger zerolog.Logger) {
	defer c.wg.Done()
	for {
		msg, err := conn.Read()
		if err != nil {
			logger.Debug().Err(err).Msg("room read ended")
			break
		}
		if !c.owns(gen) {
			break
		}
		if stop := c.handle(gen, msg, logger); stop {
			break
		}
	}

	if c.detach(gen, conn) {
		c.setStateIfOwned(gen, callstate.TransportDisconnected)
	}
}

// handle dispatches one server message and reports whether the room is gone.
func (c *Client) handle(gen uint64, msg Message, logger zerolog.Logger) bool {
	switch msg.Type {
	case MessageBotReady:
		c.setStateIfOwned(gen, callstate.TransportReady)
	case MessageError:
		var data ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			logger.Warn().Err(err).Msg("malformed error message")
			data = ErrorData{Error: "malformed error message"}
		}
		c.emitIfOwned(gen, callstate.ErrorReported{Message: data.Error, Fatal: data.Fatal})
	case MessageBotDisconnected:
		return true
	default:
		logger.Debug().Str("type", msg.Type).Msg("ignoring message")
	}
	return false
}

func (c *Client) owns(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// detach drops conn if it is still the live connection of generation gen.
func (c *Client) detach(gen uint64, conn Conn) bool {
	c.mu.Lock()
	owned := c.gen == gen && c.conn == conn
	if owned {
		c.conn = nil
	}
	c.mu.Unlock()
	if owned {
		_ = conn.Close()
	}
	return owned
}

func (c *Client) fail(gen uint64, err error) error {
	c.mu.Lock()
	if c.gen == gen {
		c.connecting = false
		c.cancel = nil
	}
	c.mu.Unlock()

	// A Disconnect that already moved the client on wins; nothing is reported.
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if !c.owns(gen) {
		return err
	}
	c.transitionLocked(callstate.TransportError)
	c.publish(callstate.ErrorReported{Message: err.Error(), Fatal: true})
	return err
}

func (c *Client) setState(s callstate.TransportState) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.transitionLocked(s)
}

// setStateIfOwned publishes s only while gen is still the current generation.
// The check and the publish happen under emitMu, and Disconnect bumps the
// generation before publishing its own states, so a superseded attempt can
// never publish after them.
func (c *Client) setStateIfOwned(gen uint64, s callstate.TransportState) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if !c.owns(gen) {
		return false
	}
	c.transitionLocked(s)
	return true
}

func (c *Client) transitionLocked(s callstate.TransportState) {
	if c.state == s {
		return
	}
	c.state = s
	metrics.IncTransportEvent(string(s))
	c.publish(callstate.TransportStateChanged{State: s})
}

func (c *Client) emit(ev callstate.Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.publish(ev)
}

func (c *Client) emitIfOwned(gen uint64, ev callstate.Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.owns(gen) {
		c.publish(ev)
	}
}

func (c *Client) publish(ev callstate.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
	defer cancel()
	if err := c.bus.Publish(ctx, bus.TopicClientEvents, ev); err != nil {
		logger := xglog.WithComponent("rtvi")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, callstate.EventType(ev)).
			Msg("failed to publish client event")
	}
}
