package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/open-teleop/mocap-ar/pkg/config"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// ErrInvalidConfig marks updates rejected before anything was persisted.
var ErrInvalidConfig = errors.New("invalid stream config")

// ConfigPublisher announces applied stream option changes.
type ConfigPublisher interface {
	PublishConfigUpdate(cfg config.StreamConfig)
}

// StreamConfigService manages the operational stream options. The runner
// reads GetCurrentConfig on every start trigger.
type StreamConfigService interface {
	LoadConfig() error
	GetCurrentConfig() config.StreamConfig
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	SetPublisher(p ConfigPublisher)
}

type streamConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	configPublisher       ConfigPublisher
	currentConfig         config.StreamConfig
	mu                    sync.RWMutex
}

// NewStreamConfigService starts from initial, normally the bootstrap stream
// section, and overlays the operational file when it exists.
func NewStreamConfigService(operationalConfigPath string, initial config.StreamConfig, logger customlog.Logger) (StreamConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger = customlog.NewDiscardLogger()
	}

	service := &streamConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
		currentConfig:         initial,
	}

	if err := service.LoadConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Infof("No operational stream config at %s, using bootstrap values", operationalConfigPath)
			return service, nil
		}
		return nil, err
	}
	return service, nil
}

// LoadConfig replaces the current options with the file contents. On
// failure the current options are kept.
func (s *streamConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debugf("Loading operational stream config from: %s", s.operationalConfigPath)
	cfg, err := config.LoadStreamConfig(s.operationalConfigPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.currentConfig = *cfg
	s.logger.Infof("Loaded stream config: address %s, %d Hz", cfg.Address, cfg.Frequency)
	return nil
}

func (s *streamConfigService) GetCurrentConfig() config.StreamConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML renders the options in effect, which may not have
// been persisted yet.
func (s *streamConfigService) GetCurrentConfigYAML() ([]byte, error) {
	return s.GetCurrentConfig().YAML()
}

// UpdateConfig validates, persists, applies and then announces new options.
func (s *streamConfigService) UpdateConfig(newConfigYAML []byte) error {
	newCfg, err := config.ParseStreamConfig(newConfigYAML)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s.mu.Lock()
	if *newCfg == s.currentConfig {
		s.mu.Unlock()
		s.logger.Infof("Provided stream config is identical to the current one. No update needed.")
		return nil
	}
	// Persist first so a failed write leaves memory and disk in agreement.
	if err := s.persistConfigUnlocked(newCfg); err != nil {
		s.mu.Unlock()
		return err
	}
	s.currentConfig = *newCfg
	publisher := s.configPublisher
	s.mu.Unlock()

	s.logger.Infof("Stream config updated: address %s, %d Hz. Applies on the next start.", newCfg.Address, newCfg.Frequency)
	if publisher != nil {
		publisher.PublishConfigUpdate(*newCfg)
	}
	return nil
}

func (s *streamConfigService) persistConfigUnlocked(cfg *config.StreamConfig) error {
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("error encoding stream config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.operationalConfigPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(s.operationalConfigPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing operational config file '%s': %w", s.operationalConfigPath, err)
	}
	s.logger.Debugf("Persisted stream config to %s", s.operationalConfigPath)
	return nil
}

func (s *streamConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
}
