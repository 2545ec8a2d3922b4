// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package presentation renders the call model into button affordances and text.
package presentation

import "github.com/ManuGH/voicecab/internal/callstate"

// Icon names the glyph shown on the call button.
type Icon string

const (
	IconMic     Icon = "mic"
	IconMicOff  Icon = "mic-off"
	IconSpinner Icon = "spinner"
)

// Action is what a click on the call button does.
type Action string

const (
	ActionNone       Action = ""
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
)

// ErrorMessage is the only text shown once a fatal error was recorded.
const ErrorMessage = "an error occurred"

// Pill is the small status badge under the subtitle.
type Pill struct {
	Text    string `json:"text"`
	Pulsing bool   `json:"pulsing"`
}

// View is everything the page needs to draw the call widget.
type View struct {
	Status       callstate.Status `json:"status"`
	Error        bool             `json:"error"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Icon         Icon             `json:"icon,omitempty"`
	Clickable    bool             `json:"clickable"`
	Action       Action           `json:"action,omitempty"`
	Headline     string           `json:"headline,omitempty"`
	Subtitle     string           `json:"subtitle,omitempty"`
	Pill         *Pill            `json:"pill,omitempty"`
}

// Render maps a model onto its view. It is pure.
func Render(m callstate.Model) View {
	if m.Failed() {
		return View{Status: m.Status, Error: true, ErrorMessage: ErrorMessage}
	}

	v := View{Status: m.Status}
	switch m.Status {
	case callstate.StatusConnecting:
		v.Icon = IconSpinner
		v.Headline = "Connecting to AI Agent..."
		v.Subtitle = "Connecting..."
		v.Pill = &Pill{Text: "Connecting", Pulsing: true}
	case callstate.StatusConnected:
		v.Icon = IconSpinner
		v.Headline = "Preparing AI Agent..."
		v.Subtitle = "Waiting for the AI agent to be ready."
		v.Pill = &Pill{Text: "Agent Preparing", Pulsing: true}
	case callstate.StatusActive:
		v.Icon = IconMicOff
		v.Clickable = true
		v.Action = ActionDisconnect
		v.Headline = "Ready (click to disconnect)"
		v.Subtitle = "Start talking naturally. Click the microphone to end the call."
		v.Pill = &Pill{Text: "Agent Ready"}
	default:
		v.Icon = IconMic
		v.Clickable = true
		v.Action = ActionConnect
		v.Headline = "Talk to Our AI Agent"
		v.Subtitle = "Click the microphone to start a conversation"
	}
	return v
}

// Allows reports whether a click performing action is currently possible.
func (v View) Allows(action Action) bool {
	return !v.Error && v.Clickable && v.Action == action
}
