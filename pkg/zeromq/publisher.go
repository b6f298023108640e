package zeromq

import (
	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// TopicConfig carries stream option changes to subscribers.
const TopicConfig = "mocap.config"

// JSONPublisher is the part of ZeroMQService the config publisher needs.
type JSONPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// ConfigPublisher announces stream option changes on the PUB socket
type ConfigPublisher struct {
	publisher JSONPublisher
	logger    customlog.Logger
}

// NewConfigPublisher creates a new publisher for configuration updates
func NewConfigPublisher(publisher JSONPublisher, logger customlog.Logger) *ConfigPublisher {
	return &ConfigPublisher{publisher: publisher, logger: logger}
}

// PublishConfigUpdate publishes cfg as a CONFIG_UPDATED notice. It matches
// the config service's update callback.
func (p *ConfigPublisher) PublishConfigUpdate(cfg config.StreamConfig) {
	p.logger.Infof("Publishing stream config update (address %s, %d Hz)", cfg.Address, cfg.Frequency)
	if err := p.publisher.PublishJSON(TopicConfig, MsgTypeConfigUpdated, cfg); err != nil {
		p.logger.Warnf("Failed to publish config update: %v", err)
	}
}

// RegisterHandlers wires the command handlers onto service and returns the
// config publisher.
func RegisterHandlers(
	service *ZeroMQService,
	sink events.Sink,
	status func() interface{},
	current func() config.StreamConfig,
	logger customlog.Logger,
) *ConfigPublisher {
	service.RegisterHandler(MsgTypeControlEvent, NewControlEventHandler(sink, logger))
	service.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(status))
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(current, logger))

	logger.Infof("Registered command handlers")
	return NewConfigPublisher(service, logger)
}
