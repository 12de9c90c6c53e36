package usbtmc

import (
	"fmt"

	"github.com/ardnew/relaytmc/pkg"
)

// Outcome is the answer to one bulk-in request.
type Outcome struct {
	NAK   bool   // nothing to send yet; the transport must NAK, not stall
	Data  []byte // chunk to send when NAK is false
	Final bool   // chunk ends the response (EOM)

	// Err is the port's Transmit failure. The chunk is kept for the next
	// request and the outcome counts as a NAK.
	Err error
}

// NAK is the outcome for a premature bulk-in poll.
var NAK = Outcome{NAK: true}

// String describes the outcome.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("NAK(%v)", o.Err)
	}
	if o.NAK {
		return "NAK"
	}
	return fmt.Sprintf("chunk(%d bytes, final=%t)", len(o.Data), o.Final)
}

// PendingResponse is the outbound payload awaiting transmission.
type PendingResponse struct {
	Kind    ResponseKind
	Payload []byte
	Offset  int // bytes already handed to the transport

	// Terminal is set once the final chunk has been handed to the
	// transport; only its completion acknowledgement remains.
	Terminal bool
}

// Remaining returns the number of payload bytes not yet sent.
func (r PendingResponse) Remaining() int { return len(r.Payload) - r.Offset }

// Transmitter streams a pending response across bulk-in requests.
type Transmitter struct {
	resp    PendingResponse
	loaded  bool
	started bool

	// state before the last Next, restored by Undo
	prev        PendingResponse
	prevStarted bool
	undoable    bool
}

// Load replaces the pending response. Any partially sent response is
// discarded.
func (t *Transmitter) Load(kind ResponseKind, payload []byte) {
	t.resp = PendingResponse{Kind: kind, Payload: payload}
	t.loaded = kind != ResponseNone
	t.started = false
	t.undoable = false
}

// Reset discards the pending response.
func (t *Transmitter) Reset() {
	t.resp = PendingResponse{}
	t.loaded = false
	t.started = false
	t.undoable = false
}

// Pending returns the current response. The Payload slice must not be
// modified.
func (t *Transmitter) Pending() PendingResponse { return t.resp }

// Loaded reports whether a response is waiting to be sent or finished.
func (t *Transmitter) Loaded() bool { return t.loaded }

// Started reports whether at least one chunk of the current response
// has been sent.
func (t *Transmitter) Started() bool { return t.started }

// Terminal reports whether the final chunk has been sent.
func (t *Transmitter) Terminal() bool { return t.resp.Terminal }

// Next produces the next chunk for a request of up to maxLen bytes. It
// returns NAK when nothing is loaded or the final chunk was already sent.
func (t *Transmitter) Next(maxLen int) Outcome {
	if !t.loaded || t.resp.Terminal {
		return NAK
	}
	if maxLen < 0 {
		maxLen = 0
	}

	n := min(t.resp.Remaining(), maxLen)
	data := t.resp.Payload[t.resp.Offset : t.resp.Offset+n]
	final := t.resp.Offset+n == len(t.resp.Payload)
	if t.resp.Kind.SingleChunk() {
		final = true
	}

	t.prev, t.prevStarted, t.undoable = t.resp, t.started, true
	if final {
		t.resp.Offset = len(t.resp.Payload)
	} else {
		t.resp.Offset += n
	}
	t.resp.Terminal = final
	t.started = true

	pkg.LogDebug(pkg.ComponentTransfer, "bulk-in chunk",
		"kind", t.resp.Kind.String(),
		"bytes", n,
		"offset", t.resp.Offset,
		"final", final)
	return Outcome{Data: data, Final: final}
}

// Undo reverts the most recent Next so the same chunk is produced again.
// It does nothing if the response was reloaded or reset since.
func (t *Transmitter) Undo() {
	if !t.undoable {
		return
	}
	t.resp, t.started, t.undoable = t.prev, t.prevStarted, false
}
