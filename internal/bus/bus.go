// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus is the in-process event transport between the voice client, the
// call controller and status subscribers.
package bus

import "context"

// Topics used by the call pipeline.
const (
	// TopicClientEvents carries callstate.Event values emitted by the voice client.
	TopicClientEvents = "client.events"
	// TopicCallModel carries callstate.Model values after every status change.
	TopicCallModel = "call.model"
)

// Message is an opaque event payload.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel. It is closed by Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
