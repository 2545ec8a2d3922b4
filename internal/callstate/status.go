// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package callstate holds the call session model and the pure reducer that
// derives the UI-facing status from client events.
package callstate

// Status is the UI-facing call session status.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusReady      Status = "ready"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
	StatusActive     Status = "active"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusIdle,
	StatusReady,
	StatusConnecting,
	StatusConnected,
	StatusActive,
}

func (s Status) String() string { return string(s) }

// TransportState is the raw connectivity state reported by the voice client.
type TransportState string

const (
	TransportDisconnected   TransportState = "disconnected"
	TransportInitializing   TransportState = "initializing"
	TransportInitialized    TransportState = "initialized"
	TransportAuthenticating TransportState = "authenticating"
	TransportConnecting     TransportState = "connecting"
	TransportConnected      TransportState = "connected"
	TransportReady          TransportState = "ready"
	TransportDisconnecting  TransportState = "disconnecting"
	TransportError          TransportState = "error"
)

func (s TransportState) String() string { return string(s) }

// StatusFor maps a raw transport state onto a Status.
// Unknown and intermediate states (initializing, disconnecting, error) map to idle.
func StatusFor(state TransportState) Status {
	switch state {
	case TransportInitialized, TransportDisconnected:
		return StatusReady
	case TransportAuthenticating, TransportConnecting:
		return StatusConnecting
	case TransportConnected:
		return StatusConnected
	case TransportReady:
		return StatusActive
	default:
		return StatusIdle
	}
}
