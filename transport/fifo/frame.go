package fifo

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ardnew/relaytmc/pkg"
)

// FrameType identifies the content of a frame.
type FrameType uint8

// Frame types.
const (
	FrameBulkOut         FrameType = 0x01 // host → device: one bulk-out packet
	FrameControl         FrameType = 0x02 // host → device: class control request
	FrameControlResponse FrameType = 0x03 // device → host: control data stage
	FrameBulkIn          FrameType = 0x04 // device → host: one bulk-in packet
	FrameStall           FrameType = 0x05 // device → host: [rejected type] + reason
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameBulkOut:
		return "bulk-out"
	case FrameControl:
		return "control"
	case FrameControlResponse:
		return "control-response"
	case FrameBulkIn:
		return "bulk-in"
	case FrameStall:
		return "stall"
	default:
		return fmt.Sprintf("unknown (0x%02X)", uint8(t))
	}
}

// FrameHeaderSize is the size of the type and length prefix.
const FrameHeaderSize = 3

// MaxFramePayload is the largest payload a frame can carry.
const MaxFramePayload = math.MaxUint16

// WriteFrame writes one frame to w in a single Write call, so frames from
// concurrent writers to a pipe do not interleave below PIPE_BUF.
func WriteFrame(w io.Writer, t FrameType, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return fmt.Errorf("frame payload %d bytes: %w", len(payload), pkg.ErrInvalidParameter)
	}
	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = byte(t)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame from r. The returned payload is newly
// allocated.
func ReadFrame(r io.Reader) (FrameType, []byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint16(hdr[1:3]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return FrameType(hdr[0]), payload, nil
}

// stallPayload encodes the rejected frame type and the reason.
func stallPayload(rejected FrameType, reason error) []byte {
	msg := reason.Error()
	if len(msg) > MaxFramePayload-1 {
		msg = msg[:MaxFramePayload-1]
	}
	return append([]byte{byte(rejected)}, msg...)
}

// StallError is reported by the client when the device stalls a request.
type StallError struct {
	Rejected FrameType
	Reason   string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("%s stalled: %s", e.Rejected, e.Reason)
}

// Unwrap returns pkg.ErrStall.
func (e *StallError) Unwrap() error { return pkg.ErrStall }

func parseStall(payload []byte) *StallError {
	if len(payload) == 0 {
		return &StallError{Reason: "no reason"}
	}
	return &StallError{Rejected: FrameType(payload[0]), Reason: string(payload[1:])}
}
