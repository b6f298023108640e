package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadStreamConfig(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
# Operational stream options, re-read on every start trigger
address: "192.168.0.12"
frequency: 100
print_2d: true
print_3d: false
render_3d: true
render_6d: true
`
	configPath := filepath.Join(tempDir, "stream_config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadStreamConfig(configPath)
	if err != nil {
		t.Fatalf("LoadStreamConfig failed: %v", err)
	}

	if cfg.Address != "192.168.0.12" {
		t.Errorf("Expected address 192.168.0.12, got %s", cfg.Address)
	}
	if cfg.Frequency != 100 {
		t.Errorf("Expected frequency 100, got %d", cfg.Frequency)
	}
	if !cfg.Print2D || cfg.Print3D || !cfg.Render3D || !cfg.Render6D {
		t.Errorf("Unexpected toggles: %+v", cfg)
	}
}

func TestParseStreamConfigDefaults(t *testing.T) {
	cfg, err := ParseStreamConfig([]byte(`address: "127.0.0.1"`))
	if err != nil {
		t.Fatalf("ParseStreamConfig failed: %v", err)
	}

	if cfg.Frequency != DefaultStreamFrequency {
		t.Errorf("Expected default frequency %d, got %d", DefaultStreamFrequency, cfg.Frequency)
	}
	// render_3d defaults to on, the rest stay off
	if !cfg.Render3D || cfg.Print2D || cfg.Print3D || cfg.Render6D {
		t.Errorf("Unexpected default toggles: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestStreamConfigValidate(t *testing.T) {
	if err := (StreamConfig{Frequency: 30}).Validate(); err == nil {
		t.Errorf("Expected error for missing address")
	}
	if err := (StreamConfig{Address: "qtm", Frequency: -1}).Validate(); err == nil {
		t.Errorf("Expected error for negative frequency")
	}
}

func TestParseStreamConfigInvalidYAML(t *testing.T) {
	_, err := ParseStreamConfig([]byte("address: [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "invalid YAML format") {
		t.Errorf("Expected invalid YAML error, got %v", err)
	}
}

func TestLoadBootstrapConfig(t *testing.T) {
	tempDir := t.TempDir()

	bootstrapContent := `
logging:
  level: "debug"
  log_path: "/var/log/mocap"
server:
  http_port: 9090
zeromq:
  command_bind_address: "tcp://*:6666"
  frame_publish_address: "tcp://*:7777"
  frame_encoding: "cbor"
qtm:
  port: 22223
  command_timeout_ms: 2000
stream:
  address: "10.0.0.5"
  frequency: 60
  render_6d: true
runner:
  tick_hz: 90
data:
  directory: "/data/mocap"
`
	configPath := filepath.Join(tempDir, BootstrapFilename)
	if err := os.WriteFile(configPath, []byte(bootstrapContent), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	bootstrapCfg, err := LoadBootstrapConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if bootstrapCfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level 'debug', got '%s'", bootstrapCfg.Logging.Level)
	}
	if bootstrapCfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected server http_port 9090, got %d", bootstrapCfg.Server.HTTPPort)
	}
	if bootstrapCfg.ZeroMQ.FrameEncoding != "cbor" {
		t.Errorf("Expected frame_encoding cbor, got '%s'", bootstrapCfg.ZeroMQ.FrameEncoding)
	}
	if bootstrapCfg.QTM.CommandTimeoutMs != 2000 {
		t.Errorf("Expected command_timeout_ms 2000, got %d", bootstrapCfg.QTM.CommandTimeoutMs)
	}
	if bootstrapCfg.QTM.ConnectTimeoutMs != 5000 {
		t.Errorf("Expected default connect_timeout_ms 5000, got %d", bootstrapCfg.QTM.ConnectTimeoutMs)
	}
	if bootstrapCfg.QTM.ProtocolVersion != "1.19" {
		t.Errorf("Expected default protocol version 1.19, got %s", bootstrapCfg.QTM.ProtocolVersion)
	}
	if bootstrapCfg.Stream.Address != "10.0.0.5" || bootstrapCfg.Stream.Frequency != 60 {
		t.Errorf("Unexpected stream section: %+v", bootstrapCfg.Stream)
	}
	// stream defaults survive a partial section
	if !bootstrapCfg.Stream.Render3D || !bootstrapCfg.Stream.Render6D {
		t.Errorf("Expected render_3d default and render_6d set, got %+v", bootstrapCfg.Stream)
	}
	if bootstrapCfg.Runner.TickHz != 90 || bootstrapCfg.Runner.EventBuffer != 16 {
		t.Errorf("Unexpected runner section: %+v", bootstrapCfg.Runner)
	}
	if got := bootstrapCfg.Data.StreamConfigPath(); got != filepath.Join("/data/mocap", "stream_config.yaml") {
		t.Errorf("Unexpected stream config path %s", got)
	}
}

func TestLoadBootstrapConfigMissingRequired(t *testing.T) {
	tempDir := t.TempDir()

	bootstrapContentMissing := `
zeromq:
  # command_bind_address: "tcp://*:6666" # Missing
  frame_publish_address: "tcp://*:7777"
stream:
  address: "10.0.0.5"
data:
  directory: "/data"
`
	configPath := filepath.Join(tempDir, BootstrapFilename)
	if err := os.WriteFile(configPath, []byte(bootstrapContentMissing), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	_, err := LoadBootstrapConfig(tempDir)
	if err == nil {
		t.Fatalf("Expected error when loading bootstrap config with missing required fields, but got nil")
	}

	expectedErrorSubstr := "missing required field in bootstrap config: zeromq.command_bind_address"
	if !strings.Contains(err.Error(), expectedErrorSubstr) {
		t.Errorf("Expected error message to contain '%s', but got: %v", expectedErrorSubstr, err)
	}
}

func TestLoadBootstrapConfigRejectsUnknownEncoding(t *testing.T) {
	tempDir := t.TempDir()

	content := `
zeromq:
  command_bind_address: "tcp://*:6666"
  frame_publish_address: "tcp://*:7777"
  frame_encoding: "protobuf"
stream:
  address: "10.0.0.5"
data:
  directory: "/data"
`
	if err := os.WriteFile(filepath.Join(tempDir, BootstrapFilename), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test bootstrap config: %v", err)
	}

	if _, err := LoadBootstrapConfig(tempDir); err == nil {
		t.Errorf("Expected error for unsupported frame encoding")
	}
}
