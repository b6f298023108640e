package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/multierr"

	"github.com/open-teleop/mocap-ar/pkg/config"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeControlEvent   = "CONTROL_EVENT"
	MsgTypeStatusRequest  = "STATUS_REQUEST"
	MsgTypeStatusResponse = "STATUS_RESPONSE"
	MsgTypeConfigRequest  = "CONFIG_REQUEST"
	MsgTypeConfigResponse = "CONFIG_RESPONSE"
	MsgTypeConfigUpdated  = "CONFIG_UPDATED"
	MsgTypeAck            = "ACK"
	MsgTypeError          = "ERROR"
)

const (
	pollInterval  = 500 * time.Millisecond
	socketTimeout = 1 * time.Second
)

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string      `json:"type"`
	Timestamp float64     `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// inboundMessage is ZeroMQMessage with the payload left undecoded for the
// handler.
type inboundMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler processes the data field of one message type and returns
// the reply body.
type MessageHandler interface {
	HandleMessage(data json.RawMessage) (*ZeroMQMessage, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(data json.RawMessage) (*ZeroMQMessage, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(data json.RawMessage) (*ZeroMQMessage, error) {
	return f(data)
}

func newMessage(msgType string, data interface{}) *ZeroMQMessage {
	return &ZeroMQMessage{
		Type:      msgType,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Data:      data,
	}
}

// errorReply renders err as an ERROR message. Unknown or malformed
// requests are client errors.
func errorReply(err error) []byte {
	code := 500
	if errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrUnknownMessageType) {
		code = 400
	}
	reply, _ := json.Marshal(newMessage(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code}))
	return reply
}

// MessageReceiver answers requests on a REP socket
type MessageReceiver struct {
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	endpoint   string
	running    atomic.Bool
	wg         *sync.WaitGroup
}

func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger, wg *sync.WaitGroup) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	// Timeouts keep a half-finished exchange from blocking shutdown.
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}
	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("Command receiver bound on %s", endpoint)

	return &MessageReceiver{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
		endpoint:   endpoint,
		wg:         wg,
	}, nil
}

// Start begins the request loop
func (r *MessageReceiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Debugf("Command receiver started")

		for r.running.Load() {
			sockets, err := r.poller.Poll(pollInterval)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Warnf("Error receiving message: %v", err)
				}
				continue
			}

			reply, err := r.dispatcher.Dispatch(msg)
			if err != nil {
				r.logger.Warnf("Error dispatching message: %v", err)
				reply = errorReply(err)
			}

			// REP must answer every request before it can receive again.
			if _, err := r.socket.SendBytes(reply, 0); err != nil && r.running.Load() {
				r.logger.Warnf("Error sending response: %v", err)
			}
		}
		r.logger.Debugf("Command receiver stopped")
	}()
}

// Stop ends the request loop. The loop exits within one poll interval.
func (r *MessageReceiver) Stop() {
	r.running.Store(false)
}

// Close releases the socket. Call it after the loop has exited.
func (r *MessageReceiver) Close() error {
	if r.socket == nil {
		return nil
	}
	err := r.socket.Close()
	r.socket = nil
	return err
}

// MessageSender publishes on a PUB socket
type MessageSender struct {
	socket   *zmq4.Socket
	logger   customlog.Logger
	endpoint string
	running  bool
	mu       sync.Mutex
}

func newMessageSender(ctx *zmq4.Context, address string, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}
	endpoint, err := socket.GetLastEndpoint()
	if err != nil {
		endpoint = address
	}

	logger.Infof("Frame publisher bound on %s", endpoint)

	return &MessageSender{
		socket:   socket,
		logger:   logger,
		endpoint: endpoint,
		running:  true,
	}, nil
}

// PublishMessage sends topic and payload as a two-part message.
func (s *MessageSender) PublishMessage(topic string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(message, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	return err
}

// MessageDispatcher routes requests to the handler for their type
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher
func NewMessageDispatcher(logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch decodes a JSON request, runs its handler and encodes the reply.
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}

	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	d.logger.Debugf("Dispatching %s (%d bytes)", msg.Type, len(data))
	reply, err := handler.HandleMessage(msg.Data)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s response: %w", reply.Type, err)
	}
	return out, nil
}

// ZeroMQService owns the headset-facing sockets: a REP socket for control
// requests and a PUB socket for render frames and notices.
type ZeroMQService struct {
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    atomic.Bool
	stopOnce   sync.Once
	wg         *sync.WaitGroup
}

// NewZeroMQService binds both sockets from the bootstrap endpoints.
func NewZeroMQService(cfg config.ZeroMQBootstrap, logger customlog.Logger) (*ZeroMQService, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	dispatcher := NewMessageDispatcher(logger)
	wg := &sync.WaitGroup{}

	receiver, err := newMessageReceiver(ctx, cfg.CommandBindAddress, dispatcher, logger, wg)
	if err != nil {
		ctx.Term()
		return nil, err
	}

	sender, err := newMessageSender(ctx, cfg.FramePublishAddress, logger)
	if err != nil {
		receiver.Close()
		ctx.Term()
		return nil, err
	}

	return &ZeroMQService{
		ctx:        ctx,
		receiver:   receiver,
		sender:     sender,
		dispatcher: dispatcher,
		logger:     logger,
		wg:         wg,
	}, nil
}

// CommandEndpoint returns the bound REP endpoint, with wildcard ports resolved.
func (s *ZeroMQService) CommandEndpoint() string {
	return s.receiver.endpoint
}

// PublishEndpoint returns the bound PUB endpoint.
func (s *ZeroMQService) PublishEndpoint() string {
	return s.sender.endpoint
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// RegisterHandlerFunc adds a handler function for a specific message type
func (s *ZeroMQService) RegisterHandlerFunc(messageType string, handler func(json.RawMessage) (*ZeroMQMessage, error)) {
	s.dispatcher.RegisterHandler(messageType, HandlerFunc(handler))
}

// Start begins answering requests
func (s *ZeroMQService) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Infof("Starting ZeroMQ service")
	s.receiver.Start()
	return nil
}

// Stop closes both sockets and terminates the context. It is safe to call
// on a service that was never started.
func (s *ZeroMQService) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Infof("Stopping ZeroMQ service")
		s.running.Store(false)
		s.receiver.Stop()
		s.wg.Wait()

		err = multierr.Combine(s.receiver.Close(), s.sender.Close(), s.ctx.Term())
		s.logger.Infof("ZeroMQ service stopped")
	})
	return err
}

// PublishMessage implements processing.MessagePublisher.
func (s *ZeroMQService) PublishMessage(topic string, message []byte) error {
	if !s.running.Load() {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, message)
}

// PublishJSON publishes data wrapped in a ZeroMQMessage envelope.
func (s *ZeroMQService) PublishJSON(topic string, messageType string, data interface{}) error {
	msgData, err := json.Marshal(newMessage(messageType, data))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return s.PublishMessage(topic, msgData)
}
