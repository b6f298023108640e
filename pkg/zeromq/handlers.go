package zeromq

import (
	"encoding/json"
	"fmt"

	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// EventSource tags events that arrive over the command socket.
const EventSource = "zeromq"

// ControlEventHandler handles CONTROL_EVENT requests from the headset engine
// by queueing the event for the stream runner.
type ControlEventHandler struct {
	sink   events.Sink
	logger customlog.Logger
}

// NewControlEventHandler creates a handler that submits to sink.
func NewControlEventHandler(sink events.Sink, logger customlog.Logger) *ControlEventHandler {
	return &ControlEventHandler{sink: sink, logger: logger}
}

// HandleMessage decodes an events.Event from data and acknowledges it once
// queued. The ACK does not mean the stream started.
func (h *ControlEventHandler) HandleMessage(data json.RawMessage) (*ZeroMQMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: control event without data", ErrInvalidMessage)
	}
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if ev.Source == "" {
		ev.Source = EventSource
	}

	if err := h.sink.Submit(ev); err != nil {
		return nil, fmt.Errorf("queue %s: %w", ev.Kind, err)
	}
	h.logger.Debugf("Queued %s from %s", ev.Kind, ev.Source)

	return newMessage(MsgTypeAck, map[string]interface{}{
		"status": "OK",
		"event":  ev.Kind,
	}), nil
}

// StatusHandler handles STATUS_REQUEST messages
type StatusHandler struct {
	status func() interface{}
}

// NewStatusHandler creates a handler that replies with status().
func NewStatusHandler(status func() interface{}) *StatusHandler {
	return &StatusHandler{status: status}
}

// HandleMessage ignores the request body.
func (h *StatusHandler) HandleMessage(json.RawMessage) (*ZeroMQMessage, error) {
	return newMessage(MsgTypeStatusResponse, h.status()), nil
}

// ConfigHandler handles CONFIG_REQUEST messages
type ConfigHandler struct {
	current func() config.StreamConfig
	logger  customlog.Logger
}

// NewConfigHandler creates a new handler for configuration requests
func NewConfigHandler(current func() config.StreamConfig, logger customlog.Logger) *ConfigHandler {
	return &ConfigHandler{current: current, logger: logger}
}

// HandleMessage replies with the current stream options.
func (h *ConfigHandler) HandleMessage(json.RawMessage) (*ZeroMQMessage, error) {
	h.logger.Debugf("Processing configuration request")
	return newMessage(MsgTypeConfigResponse, h.current()), nil
}
