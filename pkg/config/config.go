package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default stream values used when the YAML omits them.
const (
	DefaultStreamFrequency = 30
	DefaultRTPort          = 22223
)

// StreamConfig holds the operational streaming options. It is read on every
// start trigger, so updates take effect on the next start.
type StreamConfig struct {
	// Address is the host name or IP of the mocap server.
	Address string `yaml:"address" json:"address"`
	// Frequency is the requested streaming rate in Hz.
	Frequency int  `yaml:"frequency" json:"frequency"`
	Print2D   bool `yaml:"print_2d" json:"print_2d"`
	Print3D   bool `yaml:"print_3d" json:"print_3d"`
	Render3D  bool `yaml:"render_3d" json:"render_3d"`
	Render6D  bool `yaml:"render_6d" json:"render_6d"`
}

// DefaultStreamConfig matches the headset client defaults:
// 30 Hz, 3D rendering on, everything else off.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Frequency: DefaultStreamFrequency,
		Render3D:  true,
	}
}

// Validate checks the fields that would make a start trigger meaningless.
func (c StreamConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("validation failed: missing stream address")
	}
	if c.Frequency <= 0 {
		return fmt.Errorf("validation failed: stream frequency must be positive, got %d", c.Frequency)
	}
	return nil
}

// ParseStreamConfig decodes stream options from YAML, applying defaults for
// missing fields.
func ParseStreamConfig(data []byte) (*StreamConfig, error) {
	cfg := DefaultStreamConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML format: %w", err)
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultStreamFrequency
	}
	return &cfg, nil
}

// LoadStreamConfig loads stream options from the specified file path.
func LoadStreamConfig(path string) (*StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading stream config file: %w", err)
	}
	cfg, err := ParseStreamConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing stream config file: %w", err)
	}
	return cfg, nil
}

// YAML renders the options in the on-disk layout.
func (c StreamConfig) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
