// Package config loads the relay device configuration from YAML.
//
// Loading is staged: Load parses, Validate checks declaratively without
// mutating, and Normalize fills defaults and canonicalizes values. Load
// runs all three.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/relaytmc/pkg"
)

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Response  ResponseConfig  `yaml:"response"`
	Backend   BackendConfig   `yaml:"backend"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Channels      int    `yaml:"channels"`
	ActiveLevel   string `yaml:"active_level"`   // "low" or "high"
	CommandFormat string `yaml:"command_format"` // e.g. "relay%d:en"
	IDN           string `yaml:"idn"`            // identification string or prefix
	Serial        string `yaml:"serial"`         // appended to IDN when set
	BufferSize    int    `yaml:"buffer_size"`
}

// ---- RESPONSE TIMING ----

type ResponseConfig struct {
	DelayMs int `yaml:"delay_ms"`
	TickMs  int `yaml:"tick_ms"`
}

// ---- OUTPUT BACKEND ----

// Backend kinds.
const (
	BackendMemory = "memory"
	BackendGPIO   = "gpio"
	BackendModbus = "modbus"
)

type BackendConfig struct {
	Kind   string       `yaml:"kind"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Modbus ModbusConfig `yaml:"modbus"`
}

type GPIOConfig struct {
	Pins []string `yaml:"pins"` // one periph pin name per channel
}

type ModbusConfig struct {
	Mode      string `yaml:"mode"`    // "rtu" or "tcp"
	Address   string `yaml:"address"` // serial device or host:port
	BaudRate  int    `yaml:"baud_rate"`
	SlaveID   uint8  `yaml:"slave_id"`
	CoilBase  uint16 `yaml:"coil_base"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- TRANSPORT ----

// Transport kinds.
const (
	TransportSerial = "serial"
	TransportFIFO   = "fifo"
	TransportStdio  = "stdio"
)

type TransportConfig struct {
	Kind      string `yaml:"kind"`
	Port      string `yaml:"port"`       // serial device
	BaudRate  int    `yaml:"baud_rate"`  // serial
	BusDir    string `yaml:"bus_dir"`    // fifo
	MaxPacket int    `yaml:"max_packet"` // bulk-in request size
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration of the 8-channel relay board served
// on stdio from memory-backed outputs.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Channels:      8,
			ActiveLevel:   "low",
			CommandFormat: "relay%d:en",
			IDN:           "RELAY1:EN 1\nRELAY1:EN?\nhttps://github.com/charkster/relay_usbtmc",
			BufferSize:    225,
		},
		Response: ResponseConfig{
			DelayMs: 125,
			TickMs:  1,
		},
		Backend: BackendConfig{
			Kind: BackendMemory,
		},
		Transport: TransportConfig{
			Kind:      TransportStdio,
			MaxPacket: 64,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Parse decodes YAML over the defaults, validates and normalizes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Load reads the file at path and parses it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pkg.LogInfo(pkg.ComponentConfig, "config loaded",
		"path", path,
		"channels", cfg.Device.Channels,
		"backend", cfg.Backend.Kind,
		"transport", cfg.Transport.Kind)
	return cfg, nil
}
