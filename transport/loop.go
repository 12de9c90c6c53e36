package transport

import (
	"context"
	"time"

	"github.com/ardnew/relaytmc/pkg"
)

// DefaultTick is the engine advance period. It bounds how late a response
// phase transition can be observed.
const DefaultTick = time.Millisecond

// Pump applies events with handle and calls advance every tick, all on
// the calling goroutine. It returns nil when events is closed, ctx.Err()
// when ctx is cancelled, or the first error returned by handle or
// advance.
func Pump[E any](ctx context.Context, tick time.Duration, events <-chan E,
	handle func(E) error, advance func(time.Time) error,
) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				pkg.LogDebug(pkg.ComponentTransport, "event source closed")
				return nil
			}
			if err := handle(ev); err != nil {
				return err
			}

		case now := <-ticker.C:
			if err := advance(now); err != nil {
				return err
			}
		}
	}
}

// Forward sends v on events unless ctx is done first. It reports whether
// v was sent.
func Forward[E any](ctx context.Context, events chan<- E, v E) bool {
	select {
	case events <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
