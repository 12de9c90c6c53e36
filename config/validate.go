package config

import (
	"fmt"
	"strings"

	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/usbtmc"
)

// MaxChannels bounds the configured channel count.
const MaxChannels = 64

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: %w", pkg.ErrNotConfigured)
	}

	// ---- device ----

	d := cfg.Device
	if d.Channels < 1 || d.Channels > MaxChannels {
		return invalid("device.channels %d outside 1..%d", d.Channels, MaxChannels)
	}
	switch fold(d.ActiveLevel) {
	case "", "low", "high":
	default:
		return invalid("device.active_level %q must be low or high", d.ActiveLevel)
	}
	if _, err := usbtmc.NewTable(d.Channels, d.CommandFormat); err != nil {
		return fmt.Errorf("device.command_format: %w", err)
	}
	if d.BufferSize < 0 {
		return invalid("device.buffer_size %d is negative", d.BufferSize)
	}

	// ---- response ----

	maxDelay := int(usbtmc.MaxResponseDelay.Milliseconds())
	if r := cfg.Response; r.DelayMs < 0 || r.DelayMs > maxDelay {
		return invalid("response.delay_ms %d outside 0..%d", r.DelayMs, maxDelay)
	}
	if cfg.Response.TickMs < 0 {
		return invalid("response.tick_ms %d is negative", cfg.Response.TickMs)
	}

	// ---- backend ----

	b := cfg.Backend
	switch fold(b.Kind) {
	case "", BackendMemory:
	case BackendGPIO:
		if len(b.GPIO.Pins) != d.Channels {
			return invalid("backend.gpio.pins has %d pins for %d channels",
				len(b.GPIO.Pins), d.Channels)
		}
		for i, name := range b.GPIO.Pins {
			if strings.TrimSpace(name) == "" {
				return invalid("backend.gpio.pins[%d] is empty", i)
			}
		}
	case BackendModbus:
		if b.Modbus.Address == "" {
			return invalid("backend.modbus.address is required")
		}
		switch fold(b.Modbus.Mode) {
		case "", "rtu", "tcp":
		default:
			return invalid("backend.modbus.mode %q must be rtu or tcp", b.Modbus.Mode)
		}
		if int(b.Modbus.CoilBase)+d.Channels > 1<<16 {
			return invalid("backend.modbus.coil_base %d leaves no room for %d coils",
				b.Modbus.CoilBase, d.Channels)
		}
		if b.Modbus.TimeoutMs < 0 || b.Modbus.BaudRate < 0 {
			return invalid("backend.modbus timeout and baud rate must not be negative")
		}
	default:
		return invalid("backend.kind %q must be memory, gpio or modbus", b.Kind)
	}

	// ---- transport ----

	t := cfg.Transport
	switch fold(t.Kind) {
	case "", TransportStdio, TransportFIFO:
	case TransportSerial:
		if t.Port == "" {
			return invalid("transport.port is required for serial")
		}
	default:
		return invalid("transport.kind %q must be stdio, serial or fifo", t.Kind)
	}
	if t.MaxPacket < 0 || t.BaudRate < 0 {
		return invalid("transport max_packet and baud_rate must not be negative")
	}

	// ---- log ----

	if _, err := pkg.ParseLogLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := pkg.ParseLogFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}

	return nil
}

// fold matches the case and space handling of Normalize.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, pkg.ErrInvalidParameter)...)
}
