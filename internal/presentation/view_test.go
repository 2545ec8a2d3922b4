// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package presentation

import (
	"encoding/json"
	"testing"

	"github.com/ManuGH/voicecab/internal/callstate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		status callstate.Status
		want   View
	}{
		{
			status: callstate.StatusIdle,
			want: View{Status: callstate.StatusIdle, Icon: IconMic, Clickable: true, Action: ActionConnect,
				Headline: "Talk to Our AI Agent", Subtitle: "Click the microphone to start a conversation"},
		},
		{
			status: callstate.StatusReady,
			want: View{Status: callstate.StatusReady, Icon: IconMic, Clickable: true, Action: ActionConnect,
				Headline: "Talk to Our AI Agent", Subtitle: "Click the microphone to start a conversation"},
		},
		{
			status: callstate.StatusConnecting,
			want: View{Status: callstate.StatusConnecting, Icon: IconSpinner,
				Headline: "Connecting to AI Agent...", Subtitle: "Connecting...",
				Pill: &Pill{Text: "Connecting", Pulsing: true}},
		},
		{
			status: callstate.StatusConnected,
			want: View{Status: callstate.StatusConnected, Icon: IconSpinner,
				Headline: "Preparing AI Agent...", Subtitle: "Waiting for the AI agent to be ready.",
				Pill: &Pill{Text: "Agent Preparing", Pulsing: true}},
		},
		{
			status: callstate.StatusActive,
			want: View{Status: callstate.StatusActive, Icon: IconMicOff, Clickable: true, Action: ActionDisconnect,
				Headline: "Ready (click to disconnect)", Subtitle: "Start talking naturally. Click the microphone to end the call.",
				Pill: &Pill{Text: "Agent Ready"}},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := Render(callstate.Model{Status: tt.status})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Render(%s) mismatch (-want +got):\n%s", tt.status, diff)
			}
		})
	}
}

func TestRenderErrorViewOverridesEveryStatus(t *testing.T) {
	for _, s := range callstate.AllStatuses {
		v := Render(callstate.Model{Status: s, FatalError: "boom"})
		assert.True(t, v.Error)
		assert.Equal(t, ErrorMessage, v.ErrorMessage)
		assert.False(t, v.Clickable)
		assert.Empty(t, v.Headline)
		assert.Nil(t, v.Pill)
		assert.False(t, v.Allows(ActionConnect))
		assert.False(t, v.Allows(ActionDisconnect))
	}
}

func TestAllows(t *testing.T) {
	assert.True(t, Render(callstate.Model{Status: callstate.StatusReady}).Allows(ActionConnect))
	assert.False(t, Render(callstate.Model{Status: callstate.StatusReady}).Allows(ActionDisconnect))
	assert.False(t, Render(callstate.Model{Status: callstate.StatusConnecting}).Allows(ActionConnect))
	assert.True(t, Render(callstate.Model{Status: callstate.StatusActive}).Allows(ActionDisconnect))
}

func TestViewJSON(t *testing.T) {
	raw, err := json.Marshal(Render(callstate.Model{Status: callstate.StatusConnecting}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "connecting",
		"error": false,
		"icon": "spinner",
		"clickable": false,
		"headline": "Connecting to AI Agent...",
		"subtitle": "Connecting...",
		"pill": {"text": "Connecting", "pulsing": true}
	}`, string(raw))
}
