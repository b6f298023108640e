package api

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/wire"
)

// EventSourceWebSocket tags events submitted on /ws/control.
const EventSourceWebSocket = "websocket"

// frameBuffer is how many encoded frames a slow subscriber may lag behind
// before frames are dropped for it.
const frameBuffer = 4

// RegisterWebSocketRoutes registers /ws/control and /ws/frames.
func RegisterWebSocketRoutes(app *fiber.App, sink events.Sink, hub *FrameHub, logger customlog.Logger) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/control", websocket.New(func(conn *websocket.Conn) {
		ControlWebSocketHandler(conn, logger, sink)
	}))
	app.Get("/ws/frames", websocket.New(func(conn *websocket.Conn) {
		FramesWebSocketHandler(conn, logger, hub)
	}))

	logger.Infof("Registered websocket endpoints /ws/control and /ws/frames")
}

func logClose(logger customlog.Logger, name string, err error) {
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
		logger.Errorf("%s WS read error: %v", name, err)
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		logger.Infof("%s WS connection closed normally.", name)
	default:
		logger.Infof("%s WS connection closed: %v", name, err)
	}
}

// ControlWebSocketHandler reads JSON control events, queues them for the
// stream runner and answers each with a ControlReply.
func ControlWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, sink events.Sink) {
	logger.Infof("Control WebSocket connected: %s", conn.RemoteAddr())
	defer logger.Infof("Control WebSocket disconnected: %s", conn.RemoteAddr())

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logClose(logger, "Control", err)
			return
		}
		if mt != websocket.TextMessage {
			logger.Debugf("Ignoring non-text Control WS message type: %d", mt)
			continue
		}

		var ev events.Event
		err = json.Unmarshal(msg, &ev)
		if err == nil {
			err = ev.Validate()
		}
		if err != nil {
			logger.Warnf("Rejected control event from WS: %v. Message: %s", err, string(msg))
			if werr := conn.WriteJSON(ControlReply{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if ev.Source == "" {
			ev.Source = EventSourceWebSocket
		}

		reply := ControlReply{OK: true, Event: ev.Kind.String()}
		if err := sink.Submit(ev); err != nil {
			logger.Warnf("Control event %s not queued: %v", ev.Kind, err)
			reply = ControlReply{Event: ev.Kind.String(), Error: err.Error()}
		}
		if err := conn.WriteJSON(reply); err != nil {
			logClose(logger, "Control", err)
			return
		}
	}
}

type frameClient struct {
	send chan []byte
}

// FrameHub fans render frames out to websocket subscribers as JSON. It
// implements processing.FrameBroadcaster.
type FrameHub struct {
	codec   wire.Codec
	logger  customlog.Logger
	mu      sync.Mutex
	clients map[*frameClient]struct{}
	dropped atomic.Int64
}

// NewFrameHub creates an empty hub.
func NewFrameHub(logger customlog.Logger) *FrameHub {
	return &FrameHub{
		codec:   wire.JSONCodec{},
		logger:  logger,
		clients: make(map[*frameClient]struct{}),
	}
}

func (h *FrameHub) subscribe() *frameClient {
	c := &frameClient{send: make(chan []byte, frameBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *FrameHub) unsubscribe(c *frameClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// BroadcastFrame encodes f once and queues it for every subscriber without
// blocking.
func (h *FrameHub) BroadcastFrame(f *wire.RenderFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := h.codec.Encode(f)
	if err != nil {
		h.logger.Warnf("Failed to encode frame %d for websocket: %v", f.Frame, err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of subscribers.
func (h *FrameHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many per-client frames were skipped.
func (h *FrameHub) Dropped() int64 {
	return h.dropped.Load()
}

// FramesWebSocketHandler streams render frames until the client goes away.
// Client messages are read and discarded so close frames are seen.
func FramesWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, hub *FrameHub) {
	logger.Infof("Frames WebSocket connected: %s", conn.RemoteAddr())
	client := hub.subscribe()
	defer func() {
		hub.unsubscribe(client)
		logger.Infof("Frames WebSocket disconnected: %s", conn.RemoteAddr())
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logClose(logger, "Frames", err)
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case data, ok := <-client.send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debugf("Frames WS write failed: %v", err)
				return
			}
		}
	}
}
