package usbtmc

import (
	"fmt"

	"github.com/ardnew/relaytmc/pkg"
)

// MessageBuffer accumulates bulk-out fragments into one command message.
//
// The buffer never grows past its capacity. A fragment that would
// overflow it is rejected whole and the buffer keeps its prior content.
type MessageBuffer struct {
	buf      []byte
	complete bool
}

// NewMessageBuffer creates a buffer holding at most capacity bytes.
// A non-positive capacity selects DefaultBufferSize.
func NewMessageBuffer(capacity int) *MessageBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &MessageBuffer{buf: make([]byte, 0, capacity)}
}

// Reset empties the buffer at the start of a new inbound transfer.
func (b *MessageBuffer) Reset() {
	b.buf = b.buf[:0]
	b.complete = false
}

// Append adds fragment to the message. When final is true the message
// is complete.
func (b *MessageBuffer) Append(fragment []byte, final bool) error {
	if len(b.buf)+len(fragment) > cap(b.buf) {
		return fmt.Errorf("append %d bytes to %d of %d: %w",
			len(fragment), len(b.buf), cap(b.buf), pkg.ErrOverflow)
	}
	b.buf = append(b.buf, fragment...)
	b.complete = final
	return nil
}

// Bytes returns the accumulated message. The slice aliases the buffer
// and is only valid until the next Reset or Append.
func (b *MessageBuffer) Bytes() []byte { return b.buf }

// Len returns the number of accumulated bytes.
func (b *MessageBuffer) Len() int { return len(b.buf) }

// Cap returns the buffer capacity.
func (b *MessageBuffer) Cap() int { return cap(b.buf) }

// Complete reports whether the final fragment has been appended.
func (b *MessageBuffer) Complete() bool { return b.complete }
