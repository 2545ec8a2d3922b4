// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rtvi is a thin real-time voice client. It bootstraps a call session
// against the backend (`POST {baseUrl}/call/connect`), joins the returned room
// over a signaling transport, and reports transport states and error
// notifications on the event bus.
//
// Media (audio capture, playback, WebRTC) is not handled here; Devices and
// Transport are the seams where a media stack plugs in.
package rtvi
