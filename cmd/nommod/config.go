package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the nommod daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config.
type Config struct {
	// Headset HID device selection
	Device DeviceConfig `yaml:"device"`

	// PulseAudio connection and sink selection
	Pulse PulseConfig `yaml:"pulse"`

	// Volume stepping behavior
	Volume VolumeConfig `yaml:"volume"`

	// Daemon behavior
	Daemon DaemonConfig `yaml:"daemon"`

	// IPC configuration (used by the nommo-ctl companion tool)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket server configuration
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type DeviceConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
}

type PulseConfig struct {
	// Server is the PulseAudio server address. Empty means the default
	// server ($PULSE_SERVER or the per-user native socket).
	Server string `yaml:"server,omitempty"`

	// Sink pins a specific sink by name. Empty follows the server's
	// default sink.
	Sink string `yaml:"sink,omitempty"`
}

type VolumeConfig struct {
	StepPercent int `yaml:"step_percent"`
}

type DaemonConfig struct {
	// RefreshMS polls the sink while idle so external volume changes show
	// up in broadcast state. 0 disables polling.
	RefreshMS int `yaml:"refresh_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			VendorID:  nommoVendorID,
			ProductID: nommoProductID,
		},
		Pulse: PulseConfig{
			Server: "",
			Sink:   "",
		},
		Volume: VolumeConfig{
			StepPercent: defaultStepPercent,
		},
		Daemon: DaemonConfig{
			RefreshMS: defaultRefreshMS,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		StateWS: StateWSConfig{
			Port: defaultStateWSPort,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Notes:
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
//   - Defaults are applied first, then the file overlays them.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed
	// after the document). Decode into a Node so field checking cannot mask
	// the extra document; only a clean EOF means the file held one document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// The config file is the primary configuration surface; flags exist for
// ad-hoc overrides and environments where a file is awkward. Flags pass
// pointers; a nil pointer means "not set on the command line".
type FlagOverrides struct {
	PulseServer *string
	PulseSink   *string

	StepPercent *int
	RefreshMS   *int

	IPCSocketPath *string
	StateWSPort   *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is
// ignored. If the pointer is non-nil, the value is applied (even if it is a
// zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PulseServer != nil {
		cfg.Pulse.Server = *o.PulseServer
	}
	if o.PulseSink != nil {
		cfg.Pulse.Sink = *o.PulseSink
	}

	if o.StepPercent != nil {
		cfg.Volume.StepPercent = *o.StepPercent
	}
	if o.RefreshMS != nil {
		cfg.Daemon.RefreshMS = *o.RefreshMS
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Port = *o.StateWSPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if c.Device.VendorID == 0 {
		return errors.New("device.vendor_id must not be 0")
	}
	if c.Device.ProductID == 0 {
		return errors.New("device.product_id must not be 0")
	}

	if c.Volume.StepPercent < 1 || c.Volume.StepPercent > 100 {
		return errors.New("volume.step_percent must be between 1 and 100")
	}

	if c.Daemon.RefreshMS < 0 {
		return errors.New("daemon.refresh_ms must be >= 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	if c.StateWS.Port < 0 || c.StateWS.Port > 65535 {
		return errors.New("state_ws.port must be between 0 and 65535")
	}

	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
