package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/relaytmc/pkg"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	Normalize(cfg)

	assert.Equal(t, 8, cfg.Device.Channels)
	assert.False(t, cfg.Device.ActiveHigh())
	assert.Equal(t, 125*time.Millisecond, cfg.Response.Delay())
	assert.Equal(t, time.Millisecond, cfg.Response.Tick())
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, TransportStdio, cfg.Transport.Kind)
}

func TestParse_QTPyBoard(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  channels: 2
  active_level: HIGH
  command_format: "gpio%d:relay"
  idn: "QT_Py_Dual_Relay_"
  serial: "0x8b0c1a2f"
response:
  delay_ms: 50
backend:
  kind: GPIO
  gpio:
    pins: [" GPIO17", "GPIO27 "]
transport:
  kind: fifo
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Device.Channels)
	assert.True(t, cfg.Device.ActiveHigh())
	assert.Equal(t, "high", cfg.Device.ActiveLevel)
	assert.Equal(t, "gpio%d:relay", cfg.Device.CommandFormat)
	assert.Equal(t, "0x8b0c1a2f", cfg.Device.Serial)
	assert.Equal(t, 50*time.Millisecond, cfg.Response.Delay())
	assert.Equal(t, BackendGPIO, cfg.Backend.Kind)
	assert.Equal(t, []string{"GPIO17", "GPIO27"}, cfg.Backend.GPIO.Pins)
	assert.Equal(t, TransportFIFO, cfg.Transport.Kind)
	assert.Equal(t, DefaultBusDir, cfg.Transport.BusDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParse_ModbusDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
backend:
  kind: modbus
  modbus:
    address: /dev/ttyUSB0
    slave_id: 3
transport:
  kind: serial
  port: /dev/ttyACM0
`))
	require.NoError(t, err)

	m := cfg.Backend.Modbus
	assert.Equal(t, "rtu", m.Mode)
	assert.Equal(t, DefaultModbusBaudRate, m.BaudRate)
	assert.Equal(t, time.Second, m.Timeout())
	assert.Equal(t, uint8(3), m.SlaveID)
	assert.Equal(t, DefaultSerialBaudRate, cfg.Transport.BaudRate)
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("device: [1, 2"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaytmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("response:\n  delay_ms: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Response.Delay())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_PaddedKeywords(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  active_level: " High "
backend:
  kind: " Modbus"
  modbus:
    mode: "TCP "
    address: localhost:502
transport:
  kind: " serial "
  port: /dev/ttyUSB0
`))
	require.NoError(t, err)
	assert.True(t, cfg.Device.ActiveHigh())
	assert.Equal(t, "high", cfg.Device.ActiveLevel)
	assert.Equal(t, BackendModbus, cfg.Backend.Kind)
	assert.Equal(t, "tcp", cfg.Backend.Modbus.Mode)
	assert.Equal(t, TransportSerial, cfg.Transport.Kind)
	assert.Equal(t, DefaultSerialBaudRate, cfg.Transport.BaudRate)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no channels", func(c *Config) { c.Device.Channels = 0 }},
		{"too many channels", func(c *Config) { c.Device.Channels = MaxChannels + 1 }},
		{"active level", func(c *Config) { c.Device.ActiveLevel = "sideways" }},
		{"command format", func(c *Config) { c.Device.CommandFormat = "relay" }},
		{"buffer size", func(c *Config) { c.Device.BufferSize = -1 }},
		{"negative delay", func(c *Config) { c.Response.DelayMs = -1 }},
		{"huge delay", func(c *Config) { c.Response.DelayMs = 10001 }},
		{"negative tick", func(c *Config) { c.Response.TickMs = -1 }},
		{"backend kind", func(c *Config) { c.Backend.Kind = "i2c" }},
		{"gpio pin count", func(c *Config) {
			c.Backend.Kind = BackendGPIO
			c.Backend.GPIO.Pins = []string{"GPIO1"}
		}},
		{"gpio empty pin", func(c *Config) {
			c.Device.Channels = 2
			c.Backend.Kind = BackendGPIO
			c.Backend.GPIO.Pins = []string{"GPIO1", " "}
		}},
		{"modbus address", func(c *Config) { c.Backend.Kind = BackendModbus }},
		{"modbus mode", func(c *Config) {
			c.Backend.Kind = BackendModbus
			c.Backend.Modbus.Address = "localhost:502"
			c.Backend.Modbus.Mode = "ascii"
		}},
		{"modbus coil range", func(c *Config) {
			c.Backend.Kind = BackendModbus
			c.Backend.Modbus.Address = "localhost:502"
			c.Backend.Modbus.CoilBase = 0xFFFF
		}},
		{"transport kind", func(c *Config) { c.Transport.Kind = "usb" }},
		{"serial port", func(c *Config) { c.Transport.Kind = TransportSerial }},
		{"max packet", func(c *Config) { c.Transport.MaxPacket = -1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), pkg.ErrInvalidParameter)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), pkg.ErrNotConfigured)
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Kind = "MEMORY"
	cfg.Log.Level = " Info "
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "MEMORY", cfg.Backend.Kind)
	assert.Equal(t, " Info ", cfg.Log.Level)

	Normalize(cfg)
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
}
