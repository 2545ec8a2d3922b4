// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package callstate

// Model is the complete reducer state.
type Model struct {
	Status     Status `json:"status"`
	FatalError string `json:"fatalError,omitempty"`
}

// Initial is the model at mount time.
func Initial() Model {
	return Model{Status: StatusIdle}
}

// Failed reports whether a fatal error has been recorded.
func (m Model) Failed() bool {
	return m.FatalError != ""
}

// Reduce applies ev to prev and returns the next model. It has no side effects.
//
// A recorded fatal error is terminal: every later event returns prev unchanged.
// Non-fatal errors are ignored.
func Reduce(prev Model, ev Event) Model {
	if prev.Failed() {
		return prev
	}

	switch e := ev.(type) {
	case TransportStateChanged:
		prev.Status = StatusFor(e.State)
	case DisconnectRequested:
		prev.Status = StatusReady
	case ErrorReported:
		if !e.Fatal {
			return prev
		}
		prev.FatalError = e.Message
		if prev.FatalError == "" {
			prev.FatalError = "unknown error"
		}
	}
	return prev
}

// ReduceAll folds events over the initial model.
func ReduceAll(events ...Event) Model {
	m := Initial()
	for _, ev := range events {
		m = Reduce(m, ev)
	}
	return m
}
