// Package events defines the control events that drive the stream runner.
// Events arrive from the headset engine over ZeroMQ, from websocket clients
// and from the HTTP API, and are delivered to the runner through a channel.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a control event.
type Kind int

const (
	// StartStream asks the runner to connect and start streaming.
	StartStream Kind = iota + 1
	// HomeTap is the controller home button. It starts the stream.
	HomeTap
	// BumperDown and BumperUp bracket an anchor rotation on the host.
	BumperDown
	BumperUp
)

var kindNames = map[Kind]string{
	StartStream: "START_STREAM",
	HomeTap:     "HOME_TAP",
	BumperDown:  "BUMPER_DOWN",
	BumperUp:    "BUMPER_UP",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the wire names above, case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

// StartsStream reports whether the event triggers the start sequence.
func (k Kind) StartsStream() bool {
	return k == StartStream || k == HomeTap
}

// MarshalJSON writes the wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON reads the wire name.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is one control event.
type Event struct {
	Kind Kind `json:"type"`
	// Address overrides the configured server address for a start. Empty
	// means use the configuration.
	Address string    `json:"address,omitempty"`
	Source  string    `json:"source,omitempty"`
	At      time.Time `json:"-"`
}

// Sink accepts events without blocking the producer for long.
type Sink interface {
	Submit(Event) error
}

var (
	// ErrQueueFull is returned when the runner is not draining events.
	ErrQueueFull = errors.New("event queue full")
	// ErrMissingKind is returned for an event without a type.
	ErrMissingKind = errors.New("event type missing")
)

// Validate rejects events the runner cannot act on.
func (e Event) Validate() error {
	if _, ok := kindNames[e.Kind]; !ok {
		if e.Kind == 0 {
			return ErrMissingKind
		}
		return fmt.Errorf("unknown event type %s", e.Kind)
	}
	return nil
}

// Queue is a bounded channel of events.
type Queue chan Event

// NewQueue creates a queue with room for size pending events.
func NewQueue(size int) Queue {
	if size <= 0 {
		size = 1
	}
	return make(Queue, size)
}

// Submit enqueues ev, stamping it when At is unset. It never blocks.
func (q Queue) Submit(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case q <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}
