// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rtvi

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect while a session is being set up or is live.
	ErrAlreadyConnected = errors.New("rtvi: session already connecting or connected")

	// ErrInvalidSession is returned when the bootstrap response lacks a room URL.
	ErrInvalidSession = errors.New("rtvi: bootstrap response missing room_url")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("rtvi: missing dependency")
)

// BootstrapError is a non-2xx answer from the bootstrap endpoint.
type BootstrapError struct {
	StatusCode int
	Detail     string
}

func (e *BootstrapError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rtvi: bootstrap failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("rtvi: bootstrap failed with status %d: %s", e.StatusCode, e.Detail)
}
