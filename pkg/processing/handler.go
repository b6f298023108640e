package processing

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/wire"
)

// MessagePublisher defines the interface for publishing messages
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// FrameBroadcaster fans a render frame out to local subscribers, such as
// websocket clients.
type FrameBroadcaster interface {
	BroadcastFrame(f *wire.RenderFrame)
}

// PublishProcessor encodes jobs and hands them to the publisher and the
// broadcaster.
type PublishProcessor struct {
	codec       wire.Codec
	publisher   MessagePublisher
	broadcaster FrameBroadcaster
}

// NewPublishProcessor creates a processor. publisher and broadcaster may be nil.
func NewPublishProcessor(codec wire.Codec, publisher MessagePublisher, broadcaster FrameBroadcaster) *PublishProcessor {
	return &PublishProcessor{codec: codec, publisher: publisher, broadcaster: broadcaster}
}

// Process publishes one job and returns the number of bytes sent.
func (p *PublishProcessor) Process(job *Job) (int, error) {
	var (
		payload []byte
		err     error
	)
	if job.Frame != nil {
		payload, err = p.codec.Encode(job.Frame)
		if err != nil {
			return 0, fmt.Errorf("encode %s frame: %w", p.codec.Name(), err)
		}
	} else {
		payload, err = json.Marshal(job.Data)
		if err != nil {
			return 0, fmt.Errorf("encode %s payload: %w", job.Topic, err)
		}
	}

	var errs error
	if p.publisher != nil {
		errs = multierr.Append(errs, p.publisher.PublishMessage(job.Topic, payload))
	}
	if job.Frame != nil && p.broadcaster != nil {
		p.broadcaster.BroadcastFrame(job.Frame)
	}
	return len(payload), errs
}

// CreateProcessorFunc adapts the processor for a ProcessingPool
func (p *PublishProcessor) CreateProcessorFunc() JobProcessor {
	return p.Process
}

// LoggingResultHandler logs publish results
type LoggingResultHandler struct {
	logger customlog.Logger
}

// NewLoggingResultHandler creates a new logging result handler
func NewLoggingResultHandler(logger customlog.Logger) *LoggingResultHandler {
	return &LoggingResultHandler{logger: logger}
}

// HandleResult handles a processed job result
func (h *LoggingResultHandler) HandleResult(result *ProcessResult) {
	if result.Error != nil {
		h.logger.Errorf("Error publishing message for topic '%s': %v", result.Topic, result.Error)
		return
	}
	h.logger.Debugf("Published %d bytes for topic '%s' (timestamp: %d)", result.Bytes, result.Topic, result.Timestamp)
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(processResult *ProcessResult) {
		if processResult == nil {
			h.logger.Errorf("Received nil ProcessResult")
			return
		}
		h.HandleResult(processResult)
	}
}
