package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardnew/relaytmc/usbtmc"
)

// Defaults applied by Normalize.
const (
	DefaultTickMs          = 1
	DefaultMaxPacket       = 64
	DefaultSerialBaudRate  = 115200
	DefaultModbusBaudRate  = 9600
	DefaultModbusTimeoutMs = 1000
)

// DefaultBusDir is the fifo bus directory used when none is configured.
var DefaultBusDir = filepath.Join(os.TempDir(), "usbtmc-bus")

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Device
	d.ActiveLevel = lowerOr(d.ActiveLevel, "low")
	if d.CommandFormat == "" {
		d.CommandFormat = usbtmc.FormatRelayEnable
	}
	if d.BufferSize == 0 {
		d.BufferSize = usbtmc.DefaultBufferSize
	}

	if cfg.Response.TickMs == 0 {
		cfg.Response.TickMs = DefaultTickMs
	}

	b := &cfg.Backend
	b.Kind = lowerOr(b.Kind, BackendMemory)
	for i := range b.GPIO.Pins {
		b.GPIO.Pins[i] = strings.TrimSpace(b.GPIO.Pins[i])
	}
	if b.Kind == BackendModbus {
		b.Modbus.Mode = lowerOr(b.Modbus.Mode, "rtu")
		if b.Modbus.TimeoutMs == 0 {
			b.Modbus.TimeoutMs = DefaultModbusTimeoutMs
		}
		if b.Modbus.BaudRate == 0 && b.Modbus.Mode == "rtu" {
			b.Modbus.BaudRate = DefaultModbusBaudRate
		}
	}

	t := &cfg.Transport
	t.Kind = lowerOr(t.Kind, TransportStdio)
	if t.MaxPacket == 0 {
		t.MaxPacket = DefaultMaxPacket
	}
	switch t.Kind {
	case TransportSerial:
		if t.BaudRate == 0 {
			t.BaudRate = DefaultSerialBaudRate
		}
	case TransportFIFO:
		if t.BusDir == "" {
			t.BusDir = DefaultBusDir
		}
	}

	cfg.Log.Level = lowerOr(cfg.Log.Level, "warn")
	cfg.Log.Format = lowerOr(cfg.Log.Format, "text")
}

func lowerOr(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}

// ActiveHigh reports whether an enabled channel drives its output high.
func (d DeviceConfig) ActiveHigh() bool {
	return strings.EqualFold(d.ActiveLevel, "high")
}

// Delay returns the per-phase response delay.
func (r ResponseConfig) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// Tick returns the engine advance period.
func (r ResponseConfig) Tick() time.Duration {
	return time.Duration(r.TickMs) * time.Millisecond
}

// Timeout returns the Modbus request timeout.
func (m ModbusConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}
