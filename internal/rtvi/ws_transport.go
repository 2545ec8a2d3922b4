// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	writeWait               = 5 * time.Second
	maxMessageBytes         = 64 << 10
)

// WebSocketTransport joins a room by dialing its URL as a WebSocket and
// presenting the session token as a bearer credential.
type WebSocketTransport struct {
	Dialer *websocket.Dialer
}

// NewWebSocketTransport returns a transport with a bounded handshake.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{Dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
	}}
}

func (t *WebSocketTransport) Dial(ctx context.Context, sess Session) (Conn, error) {
	target, err := websocketURL(sess.RoomURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if sess.Token != "" {
		header.Set("Authorization", "Bearer "+sess.Token)
	}

	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("rtvi: join room (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rtvi: join room: %w", err)
	}
	ws.SetReadLimit(maxMessageBytes)
	return &wsConn{ws: ws}, nil
}

// websocketURL maps http(s) room URLs onto ws(s).
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("rtvi: parse room url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("rtvi: unsupported room url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("rtvi: room url has no host")
	}
	return u.String(), nil
}

type wsConn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex // gorilla allows one concurrent writer
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(msg Message) error {
	if msg.Label == "" {
		msg.Label = MessageLabel
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) Read() (Message, error) {
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return Message{}, fmt.Errorf("rtvi: room closed: %w", err)
		}
		return Message{}, err
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
