package relay

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ardnew/relaytmc/pkg"
)

// GPIO drives one periph.io output pin per channel.
//
// The last level written to each pin is latched, and Get reports from
// the latch (the output register), not from the pad.
type GPIO struct {
	mutex    sync.RWMutex
	pins     []gpio.PinOut
	latch    []gpio.Level
	driven   []bool
	polarity Polarity
}

// NewGPIO creates a bank over pins, channel i+1 on pins[i], and drives
// every pin to its inactive level.
func NewGPIO(pins []gpio.PinOut, polarity Polarity) (*GPIO, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("gpio bank: no pins: %w", pkg.ErrInvalidParameter)
	}
	g := &GPIO{
		pins:     pins,
		latch:    make([]gpio.Level, len(pins)),
		driven:   make([]bool, len(pins)),
		polarity: polarity,
	}
	if err := g.Reset(); err != nil {
		return nil, err
	}
	pkg.LogInfo(pkg.ComponentRelay, "gpio bank ready",
		"channels", len(pins),
		"polarity", polarity.String())
	return g, nil
}

// OpenGPIO initializes the periph host drivers and opens the named pins,
// e.g. "GPIO17" or "PA10".
func OpenGPIO(names []string, polarity Polarity) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pins := make([]gpio.PinOut, len(names))
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %q: %w", name, pkg.ErrInvalidParameter)
		}
		pins[i] = p
	}
	return NewGPIO(pins, polarity)
}

// Len returns the number of channels.
func (g *GPIO) Len() int { return len(g.pins) }

// Set drives channel id to its active level if enabled, else inactive.
func (g *GPIO) Set(id int, enabled bool) error {
	if err := checkChannel(id, len(g.pins)); err != nil {
		return err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.drive(id-1, gpio.Level(g.polarity.Level(enabled)))
}

// Get reports whether channel id is an output latched at its active level.
func (g *GPIO) Get(id int) (bool, error) {
	if err := checkChannel(id, len(g.pins)); err != nil {
		return false, err
	}
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	i := id - 1
	return g.driven[i] && g.polarity.Enabled(bool(g.latch[i])), nil
}

// Reset drives every pin to its inactive level. All pins are attempted;
// the first error is returned.
func (g *GPIO) Reset() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	level := gpio.Level(g.polarity.Level(false))
	var first error
	for i := range g.pins {
		if err := g.drive(i, level); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (g *GPIO) drive(i int, level gpio.Level) error {
	if err := g.pins[i].Out(level); err != nil {
		g.driven[i] = false
		return fmt.Errorf("channel %d (%s): %w", i+1, g.pins[i], err)
	}
	g.latch[i] = level
	g.driven[i] = true
	pkg.LogDebug(pkg.ComponentRelay, "gpio pin driven",
		"channel", i+1,
		"pin", g.pins[i].String(),
		"level", level.String())
	return nil
}
