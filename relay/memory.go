package relay

import (
	"sync"

	"github.com/ardnew/relaytmc/pkg"
)

// Memory is an in-memory output bank. It records electrical levels so
// polarity is observable exactly as on hardware.
type Memory struct {
	mutex    sync.RWMutex
	levels   []bool
	polarity Polarity
	aux      uint16
}

// NewMemory creates a bank of n channels driven to their inactive level.
func NewMemory(n int, polarity Polarity) *Memory {
	m := &Memory{levels: make([]bool, n), polarity: polarity}
	for i := range m.levels {
		m.levels[i] = polarity.Level(false)
	}
	return m
}

// Len returns the number of channels.
func (m *Memory) Len() int { return len(m.levels) }

// Polarity returns the bank polarity.
func (m *Memory) Polarity() Polarity { return m.polarity }

// Set drives channel id to its active level if enabled, else inactive.
func (m *Memory) Set(id int, enabled bool) error {
	if err := checkChannel(id, len(m.levels)); err != nil {
		return err
	}
	m.mutex.Lock()
	m.levels[id-1] = m.polarity.Level(enabled)
	m.mutex.Unlock()
	pkg.LogDebug(pkg.ComponentRelay, "memory channel set",
		"channel", id,
		"enabled", enabled)
	return nil
}

// Get reports whether channel id drives its active level.
func (m *Memory) Get(id int) (bool, error) {
	if err := checkChannel(id, len(m.levels)); err != nil {
		return false, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.polarity.Enabled(m.levels[id-1]), nil
}

// Level returns the electrical level of channel id (true = high).
func (m *Memory) Level(id int) (bool, error) {
	if err := checkChannel(id, len(m.levels)); err != nil {
		return false, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.levels[id-1], nil
}

// Reset drives every channel inactive.
func (m *Memory) Reset() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := range m.levels {
		m.levels[i] = m.polarity.Level(false)
	}
	return nil
}

// SetAux sets the auxiliary analog output value.
func (m *Memory) SetAux(v uint16) {
	m.mutex.Lock()
	m.aux = v
	m.mutex.Unlock()
}

// Aux returns the auxiliary analog output value.
func (m *Memory) Aux() uint16 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.aux
}

// ClearAux zeroes the auxiliary analog output.
func (m *Memory) ClearAux() error {
	m.SetAux(0)
	return nil
}
