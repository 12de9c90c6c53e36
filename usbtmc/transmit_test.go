package usbtmc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransmitter_Empty(t *testing.T) {
	var tx Transmitter
	assert.True(t, tx.Next(64).NAK)

	tx.Load(ResponseNone, nil)
	assert.False(t, tx.Loaded())
	assert.True(t, tx.Next(64).NAK)
}

func TestTransmitter_SingleChunk(t *testing.T) {
	var tx Transmitter
	tx.Load(ResponseAck, []byte("\n"))

	out := tx.Next(64)
	require.False(t, out.NAK)
	assert.Equal(t, []byte("\n"), out.Data)
	assert.True(t, out.Final)
	assert.True(t, tx.Terminal())

	assert.True(t, tx.Next(64).NAK, "nothing after the final chunk")
}

func TestTransmitter_SingleChunkTruncates(t *testing.T) {
	var tx Transmitter
	id := []byte("RELAY1:EN 1\nRELAY1:EN?\nhttps://github.com/charkster/relay_usbtmc")
	tx.Load(ResponseIdentity, id)

	out := tx.Next(16)
	assert.Equal(t, id[:16], out.Data)
	assert.True(t, out.Final)
	assert.Zero(t, tx.Pending().Remaining())
}

func TestTransmitter_Chunked(t *testing.T) {
	tests := []struct {
		size, max int
		chunks    int
	}{
		{150, 64, 3},
		{128, 64, 2},
		{1, 64, 1},
		{0, 64, 1},
		{225, 1, 225},
	}

	for _, tt := range tests {
		payload := bytes.Repeat([]byte{'z'}, tt.size)
		var tx Transmitter
		tx.Load(ResponseLoopback, payload)

		got := []byte{}
		n := 0
		for !tx.Terminal() {
			out := tx.Next(tt.max)
			require.False(t, out.NAK)
			require.LessOrEqual(t, len(out.Data), tt.max)
			got = append(got, out.Data...)
			n++
			assert.Equal(t, tx.Terminal(), out.Final)
		}
		assert.Equal(t, tt.chunks, n, "size %d max %d", tt.size, tt.max)
		assert.Equal(t, payload, got)
		assert.True(t, tx.Started())
	}
}

func TestTransmitter_LoadDiscards(t *testing.T) {
	var tx Transmitter
	tx.Load(ResponseLoopback, bytes.Repeat([]byte{'a'}, 100))
	tx.Next(64)

	tx.Load(ResponseChannel, []byte("0"))
	assert.False(t, tx.Started())
	out := tx.Next(64)
	assert.Equal(t, []byte("0"), out.Data)

	tx.Reset()
	assert.False(t, tx.Loaded())
	assert.False(t, tx.Terminal())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "NAK", NAK.String())
	assert.Equal(t, "chunk(3 bytes, final=true)", Outcome{Data: []byte("abc"), Final: true}.String())
}
