package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFilename is the name of the bootstrap file inside the config directory.
const BootstrapFilename = "mocap_config.yaml"

// BootstrapConfig holds the initial configuration loaded from mocap_config.yaml
type BootstrapConfig struct {
	Logging LoggingConfig         `yaml:"logging"`
	Server  BootstrapServerConfig `yaml:"server"`
	ZeroMQ  ZeroMQBootstrap       `yaml:"zeromq"`
	QTM     QTMConfig             `yaml:"qtm"`
	Stream  StreamConfig          `yaml:"stream"`
	Runner  RunnerConfig          `yaml:"runner"`
	Output  OutputConfig          `yaml:"output"`
	Data    DataConfig            `yaml:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// BootstrapServerConfig holds the HTTP/websocket server settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// ZeroMQBootstrap holds the headset-facing ZeroMQ endpoints
type ZeroMQBootstrap struct {
	// CommandBindAddress is the REP socket that receives control events.
	CommandBindAddress string `yaml:"command_bind_address"`
	// FramePublishAddress is the PUB socket render frames are published on.
	FramePublishAddress string `yaml:"frame_publish_address"`
	// FrameEncoding is "flatbuffers" (default) or "cbor".
	FrameEncoding string `yaml:"frame_encoding"`
}

// QTMConfig holds the RT transport settings
type QTMConfig struct {
	Port             int    `yaml:"port"`
	ProtocolVersion  string `yaml:"protocol_version"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
	CommandTimeoutMs int    `yaml:"command_timeout_ms"`
}

// RunnerConfig controls the per-tick loop that stands in for the render loop
type RunnerConfig struct {
	TickHz      int `yaml:"tick_hz"`
	EventBuffer int `yaml:"event_buffer"`
}

// OutputConfig sizes the render output pool
type OutputConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// DataConfig holds the operational stream config location
type DataConfig struct {
	Directory        string `yaml:"directory"`
	StreamConfigFile string `yaml:"stream_config_file"`
}

// StreamConfigPath returns the absolute location of the operational stream config.
func (d DataConfig) StreamConfigPath() string {
	return filepath.Join(d.Directory, d.StreamConfigFile)
}

func (b *BootstrapConfig) applyDefaults() {
	if b.Logging.Level == "" {
		b.Logging.Level = "info"
	}
	if b.Server.HTTPPort == 0 {
		b.Server.HTTPPort = 8080
	}
	if b.ZeroMQ.FrameEncoding == "" {
		b.ZeroMQ.FrameEncoding = "flatbuffers"
	}
	if b.QTM.Port == 0 {
		b.QTM.Port = DefaultRTPort
	}
	if b.QTM.ProtocolVersion == "" {
		b.QTM.ProtocolVersion = "1.19"
	}
	if b.QTM.ConnectTimeoutMs == 0 {
		b.QTM.ConnectTimeoutMs = 5000
	}
	if b.QTM.CommandTimeoutMs == 0 {
		b.QTM.CommandTimeoutMs = 5000
	}
	if b.Stream.Frequency == 0 {
		b.Stream.Frequency = DefaultStreamFrequency
	}
	if b.Runner.TickHz == 0 {
		b.Runner.TickHz = 60
	}
	if b.Runner.EventBuffer == 0 {
		b.Runner.EventBuffer = 16
	}
	if b.Output.Workers == 0 {
		b.Output.Workers = 1
	}
	if b.Output.QueueSize == 0 {
		b.Output.QueueSize = 8
	}
	if b.Data.StreamConfigFile == "" {
		b.Data.StreamConfigFile = "stream_config.yaml"
	}
}

// LoadBootstrapConfig loads the bootstrap configuration from mocap_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFilename)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	bootstrapCfg := BootstrapConfig{Stream: DefaultStreamConfig()}
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.Stream.Address == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: stream.address")
	}
	if bootstrapCfg.ZeroMQ.CommandBindAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.command_bind_address")
	}
	if bootstrapCfg.ZeroMQ.FramePublishAddress == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: zeromq.frame_publish_address")
	}
	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}

	bootstrapCfg.applyDefaults()

	switch bootstrapCfg.ZeroMQ.FrameEncoding {
	case "flatbuffers", "cbor":
	default:
		return nil, fmt.Errorf("unsupported zeromq.frame_encoding %q", bootstrapCfg.ZeroMQ.FrameEncoding)
	}

	return &bootstrapCfg, nil
}
