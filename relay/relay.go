package relay

import (
	"fmt"

	"github.com/ardnew/relaytmc/pkg"
)

// Polarity selects which electrical level means "enabled".
type Polarity bool

// Polarities.
const (
	ActiveLow  Polarity = false
	ActiveHigh Polarity = true
)

// String returns "active-high" or "active-low".
func (p Polarity) String() string {
	if p == ActiveHigh {
		return "active-high"
	}
	return "active-low"
}

// Level returns the electrical level (true = high) for enabled.
func (p Polarity) Level(enabled bool) bool {
	return enabled == bool(p)
}

// Enabled reports whether level (true = high) is the active level.
func (p Polarity) Enabled(level bool) bool {
	return level == bool(p)
}

func checkChannel(id, n int) error {
	if id < 1 || id > n {
		return fmt.Errorf("channel %d outside 1..%d: %w", id, n, pkg.ErrInvalidChannel)
	}
	return nil
}
