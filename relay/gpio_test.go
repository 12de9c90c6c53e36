package relay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/ardnew/relaytmc/pkg"
)

func newTestPins(n int) ([]*gpiotest.Pin, []gpio.PinOut) {
	pins := make([]*gpiotest.Pin, n)
	outs := make([]gpio.PinOut, n)
	for i := range pins {
		pins[i] = &gpiotest.Pin{N: "RELAY", Num: i + 1}
		outs[i] = pins[i]
	}
	return pins, outs
}

func TestNewGPIO_DrivesInactive(t *testing.T) {
	tests := []struct {
		polarity Polarity
		want     gpio.Level
	}{
		{ActiveLow, gpio.High},
		{ActiveHigh, gpio.Low},
	}

	for _, tt := range tests {
		t.Run(tt.polarity.String(), func(t *testing.T) {
			pins, outs := newTestPins(3)
			for _, p := range pins {
				p.L = !tt.want
			}

			g, err := NewGPIO(outs, tt.polarity)
			require.NoError(t, err)
			require.Equal(t, 3, g.Len())

			for i, p := range pins {
				assert.Equal(t, tt.want, p.L, "pin %d", i)
				on, err := g.Get(i + 1)
				require.NoError(t, err)
				assert.False(t, on)
			}
		})
	}
}

func TestNewGPIO_NoPins(t *testing.T) {
	_, err := NewGPIO(nil, ActiveHigh)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestGPIO_SetGetReset(t *testing.T) {
	pins, outs := newTestPins(8)
	g, err := NewGPIO(outs, ActiveLow)
	require.NoError(t, err)

	require.NoError(t, g.Set(3, true))
	assert.Equal(t, gpio.Low, pins[2].L)

	on, err := g.Get(3)
	require.NoError(t, err)
	assert.True(t, on)

	// Idempotent.
	require.NoError(t, g.Set(3, true))
	assert.Equal(t, gpio.Low, pins[2].L)

	require.NoError(t, g.Set(5, true))
	require.NoError(t, g.Reset())
	for i, p := range pins {
		assert.Equal(t, gpio.High, p.L, "pin %d", i)
	}

	_, err = g.Get(9)
	assert.ErrorIs(t, err, pkg.ErrInvalidChannel)
}

type failingPin struct {
	gpiotest.Pin
}

func (*failingPin) Out(gpio.Level) error { return errors.New("pin busy") }

func TestGPIO_OutError(t *testing.T) {
	_, outs := newTestPins(2)
	outs[1] = &failingPin{Pin: gpiotest.Pin{N: "BAD"}}

	_, err := NewGPIO(outs, ActiveHigh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pin busy")
}
