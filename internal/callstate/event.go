// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package callstate

// Event is anything the reducer consumes.
type Event interface {
	eventType() string
}

// TransportStateChanged is emitted by the voice client whenever its transport
// state moves.
type TransportStateChanged struct {
	State TransportState
}

func (TransportStateChanged) eventType() string { return "transport_state_changed" }

// ErrorReported mirrors the client error notification `{error, fatal}`.
type ErrorReported struct {
	Message string `json:"error"`
	Fatal   bool   `json:"fatal"`
}

func (ErrorReported) eventType() string { return "error" }

// DisconnectRequested is enqueued locally when the user hangs up. It forces the
// status to ready without waiting for the transport.
type DisconnectRequested struct{}

func (DisconnectRequested) eventType() string { return "disconnect_requested" }

// EventType returns a stable name for logging and metrics labels.
func EventType(ev Event) string {
	if ev == nil {
		return "nil"
	}
	return ev.eventType()
}
