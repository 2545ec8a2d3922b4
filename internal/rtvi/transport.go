// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"context"
	"encoding/json"
)

// MessageLabel tags every signaling message.
const MessageLabel = "rtvi-ai"

// Signaling message types.
const (
	MessageClientReady     = "client-ready"
	MessageBotReady        = "bot-ready"
	MessageError           = "error"
	MessageDisconnectBot   = "disconnect-bot"
	MessageBotDisconnected = "bot-disconnected"
)

// Message is one signaling frame.
type Message struct {
	Label string          `json:"label,omitempty"`
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the payload of an "error" message.
type ErrorData struct {
	Error string `json:"error"`
	Fatal bool   `json:"fatal"`
}

// Transport joins a call room.
type Transport interface {
	Dial(ctx context.Context, sess Session) (Conn, error)
}

// Conn is a joined room. Read blocks until a message arrives or the
// connection is closed; Close unblocks a pending Read.
type Conn interface {
	Send(msg Message) error
	Read() (Message, error)
	Close() error
}

// Devices initialises local capture devices.
type Devices interface {
	Init(ctx context.Context) error
}

// NopDevices is used when no capture stack is attached.
type NopDevices struct{}

func (NopDevices) Init(context.Context) error { return nil }
