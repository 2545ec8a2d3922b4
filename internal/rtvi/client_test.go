// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/voicecab/internal/bus"
	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubStarter struct {
	sess  Session
	err   error
	block chan struct{}
	// deaf starters keep blocking after ctx is cancelled, like a backend
	// that only answers once its own request completes.
	deaf    bool
	started chan struct{}
}

func (s *stubStarter) Start(ctx context.Context) (Session, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		if s.deaf {
			<-s.block
		} else {
			select {
			case <-s.block:
			case <-ctx.Done():
				return Session{}, ctx.Err()
			}
		}
	}
	return s.sess, s.err
}

type fakeConn struct {
	in     chan Message
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []Message
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan Message, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Read() (Message, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		return Message{}, errors.New("closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.Type)
	}
	return out
}

type fakeTransport struct {
	conn *fakeConn
	err  error
	got  Session
}

func (t *fakeTransport) Dial(_ context.Context, sess Session) (Conn, error) {
	t.got = sess
	if t.err != nil {
		return nil, t.err
	}
	return t.conn, nil
}

// slowTransport blocks Dial until released and ignores cancellation.
type slowTransport struct {
	conn    *fakeConn
	dialing chan struct{}
	release chan struct{}
}

func (t *slowTransport) Dial(context.Context, Session) (Conn, error) {
	close(t.dialing)
	<-t.release
	return t.conn, nil
}

type failingDevices struct{}

func (failingDevices) Init(context.Context) error { return errors.New("no microphone") }

func newTestClient(t *testing.T, starter SessionStarter, tr Transport, devices Devices) (*Client, bus.Subscriber) {
	t.Helper()
	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), bus.TopicClientEvents)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	c, err := New(Config{Bootstrap: starter, Transport: tr, Devices: devices, Bus: b})
	require.NoError(t, err)
	return c, sub
}

func nextEvent(t *testing.T, sub bus.Subscriber) callstate.Event {
	t.Helper()
	select {
	case msg := <-sub.C():
		ev, ok := msg.(callstate.Event)
		require.True(t, ok, "unexpected message %T", msg)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client event")
		return nil
	}
}

func stateEvent(s callstate.TransportState) callstate.Event {
	return callstate.TransportStateChanged{State: s}
}

func TestNewRequiresDependencies(t *testing.T) {
	b := bus.NewMemoryBus()
	_, err := New(Config{Transport: &fakeTransport{}, Bus: b})
	assert.ErrorIs(t, err, ErrMissingDependency)
	_, err = New(Config{Bootstrap: &stubStarter{}, Bus: b})
	assert.ErrorIs(t, err, ErrMissingDependency)
	_, err = New(Config{Bootstrap: &stubStarter{}, Transport: &fakeTransport{}})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestClientInitDevices(t *testing.T) {
	c, sub := newTestClient(t, &stubStarter{}, &fakeTransport{}, nil)

	require.NoError(t, c.InitDevices(context.Background()))
	assert.Equal(t, stateEvent(callstate.TransportInitializing), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportInitialized), nextEvent(t, sub))
	assert.Equal(t, callstate.TransportInitialized, c.State())
}

func TestClientInitDevicesFailureIsNonFatal(t *testing.T) {
	c, sub := newTestClient(t, &stubStarter{}, &fakeTransport{}, failingDevices{})

	err := c.InitDevices(context.Background())
	require.ErrorContains(t, err, "no microphone")

	assert.Equal(t, stateEvent(callstate.TransportInitializing), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportError), nextEvent(t, sub))
	assert.Equal(t, callstate.ErrorReported{Message: "no microphone", Fatal: false}, nextEvent(t, sub))
}

func TestClientConnectLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := newFakeConn()
	tr := &fakeTransport{conn: conn}
	c, sub := newTestClient(t, &stubStarter{sess: Session{RoomURL: "https://rooms.example/a", Token: "t"}}, tr, nil)

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, "https://rooms.example/a", tr.got.RoomURL)
	assert.NotEmpty(t, c.SessionID())

	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportConnecting), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportConnected), nextEvent(t, sub))
	assert.Equal(t, []string{MessageClientReady}, conn.sentTypes())

	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	conn.in <- Message{Type: MessageBotReady}
	assert.Equal(t, stateEvent(callstate.TransportReady), nextEvent(t, sub))

	data, _ := json.Marshal(ErrorData{Error: "tts hiccup", Fatal: false})
	conn.in <- Message{Type: MessageError, Data: data}
	assert.Equal(t, callstate.ErrorReported{Message: "tts hiccup"}, nextEvent(t, sub))

	require.NoError(t, c.Close())
	assert.Equal(t, stateEvent(callstate.TransportDisconnecting), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportDisconnected), nextEvent(t, sub))
	assert.Contains(t, conn.sentTypes(), MessageDisconnectBot)

	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event after disconnect: %#v", ev)
	default:
	}
}

func TestClientRemoteHangupReportsDisconnected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := newFakeConn()
	c, sub := newTestClient(t, &stubStarter{sess: Session{RoomURL: "wss://r"}}, &fakeTransport{conn: conn}, nil)

	require.NoError(t, c.Connect(context.Background()))
	for i := 0; i < 3; i++ {
		nextEvent(t, sub)
	}

	conn.in <- Message{Type: MessageBotDisconnected}
	assert.Equal(t, stateEvent(callstate.TransportDisconnected), nextEvent(t, sub))

	require.NoError(t, c.Connect(context.Background()), "client must be reusable after the room closes")
	require.NoError(t, c.Close())
}

func TestClientConnectBootstrapFailureIsFatal(t *testing.T) {
	c, sub := newTestClient(t, &stubStarter{err: &BootstrapError{StatusCode: 500, Detail: "boom"}}, &fakeTransport{}, nil)

	err := c.Connect(context.Background())
	var be *BootstrapError
	require.True(t, errors.As(err, &be))

	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportError), nextEvent(t, sub))
	ev := nextEvent(t, sub)
	reported, ok := ev.(callstate.ErrorReported)
	require.True(t, ok)
	assert.True(t, reported.Fatal)
	assert.Contains(t, reported.Message, "boom")
}

func TestClientConnectDialFailureIsFatal(t *testing.T) {
	c, sub := newTestClient(t, &stubStarter{sess: Session{RoomURL: "wss://r"}}, &fakeTransport{err: errors.New("refused")}, nil)

	require.ErrorContains(t, c.Connect(context.Background()), "refused")
	nextEvent(t, sub) // authenticating
	nextEvent(t, sub) // connecting
	assert.Equal(t, stateEvent(callstate.TransportError), nextEvent(t, sub))
	assert.Equal(t, callstate.ErrorReported{Message: "refused", Fatal: true}, nextEvent(t, sub))
}

func TestClientDisconnectAbortsPendingConnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stubStarter{block: make(chan struct{})}
	c, sub := newTestClient(t, starter, &fakeTransport{conn: newFakeConn()}, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))

	require.NoError(t, c.Disconnect(context.Background()))
	require.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, stateEvent(callstate.TransportDisconnecting), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportDisconnected), nextEvent(t, sub))
	select {
	case ev := <-sub.C():
		t.Fatalf("aborted connect must not report errors, got %#v", ev)
	default:
	}
}

func assertNoMoreEvents(t *testing.T, sub bus.Subscriber) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("superseded connect published %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientDisconnectDuringBootstrapStaysDisconnected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stubStarter{
		sess:    Session{RoomURL: "wss://r"},
		block:   make(chan struct{}),
		deaf:    true,
		started: make(chan struct{}),
	}
	conn := newFakeConn()
	c, sub := newTestClient(t, starter, &fakeTransport{conn: conn}, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	<-starter.started
	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))

	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, stateEvent(callstate.TransportDisconnecting), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportDisconnected), nextEvent(t, sub))

	close(starter.block)
	require.ErrorIs(t, <-done, context.Canceled)

	assertNoMoreEvents(t, sub)
	assert.Equal(t, callstate.TransportDisconnected, c.State())
	assert.Empty(t, conn.sentTypes(), "superseded connect must not dial")

	// The user can call again.
	starter.started = nil
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))
	require.NoError(t, c.Close())
}

func TestClientDisconnectDuringDialClosesLateConnection(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	conn := newFakeConn()
	tr := &slowTransport{conn: conn, dialing: make(chan struct{}), release: make(chan struct{})}
	c, sub := newTestClient(t, &stubStarter{sess: Session{RoomURL: "wss://r"}}, tr, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	<-tr.dialing
	assert.Equal(t, stateEvent(callstate.TransportAuthenticating), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportConnecting), nextEvent(t, sub))

	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, stateEvent(callstate.TransportDisconnecting), nextEvent(t, sub))
	assert.Equal(t, stateEvent(callstate.TransportDisconnected), nextEvent(t, sub))

	close(tr.release)
	require.ErrorIs(t, <-done, context.Canceled)

	assertNoMoreEvents(t, sub)
	assert.Equal(t, callstate.TransportDisconnected, c.State())
	select {
	case <-conn.closed:
	default:
		t.Fatal("late connection was not closed")
	}
	assert.Empty(t, conn.sentTypes())
}
