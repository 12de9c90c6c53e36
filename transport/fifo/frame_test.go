package fifo

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/relaytmc/pkg"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, FrameBulkOut, []byte{1, 2, 3}))
	require.NoError(t, WriteFrame(&buf, FrameControlResponse, nil))
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 1, 2, 3, 0x03, 0x00, 0x00}, buf.Bytes())

	typ, payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameBulkOut, typ)
	assert.Equal(t, []byte{1, 2, 3}, payload)

	typ, payload, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, FrameControlResponse, typ)
	assert.Empty(t, payload)

	_, _, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_Truncated(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader([]byte{0x04, 0x10, 0x00, 1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, err = ReadFrame(bytes.NewReader([]byte{0x04}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrame_TooLarge(t *testing.T) {
	err := WriteFrame(io.Discard, FrameBulkIn, make([]byte, MaxFramePayload+1))
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestStallError(t *testing.T) {
	p := stallPayload(FrameControl, errors.New("control request 99: not supported"))
	err := parseStall(p)
	assert.Equal(t, FrameControl, err.Rejected)
	assert.Equal(t, "control stalled: control request 99: not supported", err.Error())
	assert.ErrorIs(t, err, pkg.ErrStall)

	assert.Equal(t, "no reason", parseStall(nil).Reason)
}

func TestFrameType_String(t *testing.T) {
	assert.Equal(t, "bulk-in", FrameBulkIn.String())
	assert.Equal(t, "unknown (0x7F)", FrameType(0x7F).String())
}
