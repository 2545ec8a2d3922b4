// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldTraceID   = "trace_id"

	FieldEvent     = "event"
	FieldComponent = "component"

	// Call state fields
	FieldOldStatus      = "old_status"
	FieldNewStatus      = "new_status"
	FieldTransportState = "transport_state"
	FieldFatal          = "fatal"

	// Backend fields
	FieldBaseURL = "base_url"
	FieldRoomURL = "room_url"
	FieldPath    = "path"
)
