package api

import "github.com/open-teleop/mocap-ar/pkg/events"

// --- Data Structures for HTTP and WebSocket Messages ---

// StartStreamRequest is the optional body of POST /api/v1/stream/start.
type StartStreamRequest struct {
	// Address overrides the configured server for this start only.
	Address string `json:"address,omitempty"`
}

// StartStreamResponse acknowledges a queued start. The runner reports the
// outcome through the status endpoint.
type StartStreamResponse struct {
	Message string       `json:"message"`
	Event   events.Event `json:"event"`
}

// ControlReply is written back on /ws/control for every message.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}
