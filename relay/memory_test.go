package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/relaytmc/pkg"
)

func TestPolarity(t *testing.T) {
	tests := []struct {
		polarity  Polarity
		enabled   bool
		wantLevel bool
	}{
		{ActiveHigh, true, true},
		{ActiveHigh, false, false},
		{ActiveLow, true, false},
		{ActiveLow, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.polarity.String(), func(t *testing.T) {
			assert.Equal(t, tt.wantLevel, tt.polarity.Level(tt.enabled))
			assert.Equal(t, tt.enabled, tt.polarity.Enabled(tt.wantLevel))
		})
	}
}

func TestMemory_InitialState(t *testing.T) {
	m := NewMemory(8, ActiveLow)
	require.Equal(t, 8, m.Len())

	for id := 1; id <= 8; id++ {
		on, err := m.Get(id)
		require.NoError(t, err)
		assert.False(t, on, "channel %d", id)

		level, err := m.Level(id)
		require.NoError(t, err)
		assert.True(t, level, "active-low channel %d should idle high", id)
	}
}

func TestMemory_SetGet(t *testing.T) {
	for _, polarity := range []Polarity{ActiveLow, ActiveHigh} {
		t.Run(polarity.String(), func(t *testing.T) {
			m := NewMemory(2, polarity)

			require.NoError(t, m.Set(2, true))
			on, err := m.Get(2)
			require.NoError(t, err)
			assert.True(t, on)

			level, err := m.Level(2)
			require.NoError(t, err)
			assert.Equal(t, bool(polarity), level)

			on, err = m.Get(1)
			require.NoError(t, err)
			assert.False(t, on)

			require.NoError(t, m.Set(2, false))
			on, err = m.Get(2)
			require.NoError(t, err)
			assert.False(t, on)
		})
	}
}

func TestMemory_InvalidChannel(t *testing.T) {
	m := NewMemory(2, ActiveHigh)

	for _, id := range []int{0, 3, -1} {
		assert.ErrorIs(t, m.Set(id, true), pkg.ErrInvalidChannel)
		_, err := m.Get(id)
		assert.ErrorIs(t, err, pkg.ErrInvalidChannel)
	}
}

func TestMemory_ResetAndAux(t *testing.T) {
	m := NewMemory(4, ActiveLow)
	for id := 1; id <= 4; id++ {
		require.NoError(t, m.Set(id, true))
	}
	m.SetAux(0x3FF)

	require.NoError(t, m.Reset())
	require.NoError(t, m.ClearAux())

	for id := 1; id <= 4; id++ {
		on, err := m.Get(id)
		require.NoError(t, err)
		assert.False(t, on, "channel %d", id)
	}
	assert.Zero(t, m.Aux())
}
