package relay

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/ardnew/relaytmc/pkg"
)

// Coil values for FC05 Write Single Coil.
const (
	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// ModbusConfig describes a Modbus relay module.
type ModbusConfig struct {
	Mode     string // "rtu" or "tcp"
	Address  string // serial device for rtu, host:port for tcp
	BaudRate int    // rtu only
	SlaveID  uint8
	CoilBase uint16 // coil address of channel 1
	Channels int
	Timeout  time.Duration
	Polarity Polarity
}

// Modbus drives relay channels as consecutive coils of a Modbus slave.
// A coil value of 1 is the high level.
type Modbus struct {
	mutex    sync.Mutex
	client   modbus.Client
	closer   io.Closer
	base     uint16
	n        int
	polarity Polarity
}

// NewModbus creates a bank over an existing client. closer may be nil.
func NewModbus(client modbus.Client, closer io.Closer, base uint16, n int, polarity Polarity) (*Modbus, error) {
	if client == nil {
		return nil, fmt.Errorf("modbus bank: client: %w", pkg.ErrNotConfigured)
	}
	if n < 1 {
		return nil, fmt.Errorf("modbus bank: %d channels: %w", n, pkg.ErrInvalidParameter)
	}
	return &Modbus{client: client, closer: closer, base: base, n: n, polarity: polarity}, nil
}

// DialModbus connects to a relay module and drives every coil inactive.
func DialModbus(cfg ModbusConfig) (*Modbus, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("modbus bank: address: %w", pkg.ErrNotConfigured)
	}

	var (
		handler modbus.ClientHandler
		conn    interface {
			Connect() error
			Close() error
		}
	)
	switch cfg.Mode {
	case "", "rtu":
		h := modbus.NewRTUClientHandler(cfg.Address)
		h.BaudRate = cfg.BaudRate
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		h.SlaveId = cfg.SlaveID
		h.Timeout = cfg.Timeout
		handler, conn = h, h
	case "tcp":
		h := modbus.NewTCPClientHandler(cfg.Address)
		h.SlaveId = cfg.SlaveID
		h.Timeout = cfg.Timeout
		handler, conn = h, h
	default:
		return nil, fmt.Errorf("modbus mode %q: %w", cfg.Mode, pkg.ErrInvalidParameter)
	}

	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("modbus connect %s: %w", cfg.Address, err)
	}

	m, err := NewModbus(modbus.NewClient(handler), conn, cfg.CoilBase, cfg.Channels, cfg.Polarity)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := m.Reset(); err != nil {
		conn.Close()
		return nil, err
	}
	pkg.LogInfo(pkg.ComponentRelay, "modbus bank ready",
		"mode", cfg.Mode,
		"address", cfg.Address,
		"slave", cfg.SlaveID,
		"channels", cfg.Channels)
	return m, nil
}

// Len returns the number of channels.
func (m *Modbus) Len() int { return m.n }

// Set writes the coil of channel id.
func (m *Modbus) Set(id int, enabled bool) error {
	if err := checkChannel(id, m.n); err != nil {
		return err
	}
	value := coilOff
	if m.polarity.Level(enabled) {
		value = coilOn
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, err := m.client.WriteSingleCoil(m.coil(id), value); err != nil {
		return fmt.Errorf("write coil %d: %w", m.coil(id), err)
	}
	return nil
}

// Get reads the coil of channel id.
func (m *Modbus) Get(id int) (bool, error) {
	if err := checkChannel(id, m.n); err != nil {
		return false, err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	res, err := m.client.ReadCoils(m.coil(id), 1)
	if err != nil {
		return false, fmt.Errorf("read coil %d: %w", m.coil(id), err)
	}
	if len(res) < 1 {
		return false, fmt.Errorf("read coil %d: empty response: %w", m.coil(id), pkg.ErrProtocol)
	}
	return m.polarity.Enabled(res[0]&0x01 != 0), nil
}

// Reset writes every coil inactive in one FC15 request.
func (m *Modbus) Reset() error {
	bits := make([]bool, m.n)
	for i := range bits {
		bits[i] = m.polarity.Level(false)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, err := m.client.WriteMultipleCoils(m.base, uint16(m.n), packBits(bits)); err != nil {
		return fmt.Errorf("write %d coils at %d: %w", m.n, m.base, err)
	}
	return nil
}

// Close closes the underlying connection.
func (m *Modbus) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

func (m *Modbus) coil(id int) uint16 {
	return m.base + uint16(id-1)
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
