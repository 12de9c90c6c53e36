package usbtmc

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ardnew/relaytmc/pkg"
)

// PacketWriter sends one bulk-in packet (header, data, padding) to the
// host. Implementations must not retain p.
type PacketWriter interface {
	WritePacket(p []byte) error
}

// ControlRequest is a class-specific control request addressed to the
// USBTMC interface.
type ControlRequest struct {
	Request uint8
	Value   uint16
	Index   uint16
	Length  uint16
}

// Class adapts an Engine to raw USBTMC bulk packets and class control
// requests. It frames outbound chunks as DEV_DEP_MSG_IN messages and
// reports their completion back to the engine.
//
// Like Engine, Class must be driven from a single goroutine.
type Class struct {
	engine *Engine
	out    PacketWriter

	hdr       Header
	inTag     uint8 // bTag of the active REQUEST_DEV_DEP_MSG_IN
	outTag    uint8 // bTag of the active DEV_DEP_MSG_OUT
	remaining int   // bytes of the current bulk-out transfer still expected
	eom       bool

	sent  int // transmitted packets awaiting completion
	txBuf []byte
}

// NewClass attaches a class adapter to engine; chunks are written to out.
func NewClass(engine *Engine, out PacketWriter) *Class {
	c := &Class{
		engine: engine,
		out:    out,
		txBuf:  make([]byte, 0, HeaderSize+64),
	}
	engine.SetPort(c)
	return c
}

// Engine returns the underlying engine.
func (c *Class) Engine() *Engine { return c.engine }

// HandleBulkOut processes one bulk-out packet. A returned error means
// the transport should stall the bulk-out endpoint, unless it wraps the
// transport's own PacketWriter error.
func (c *Class) HandleBulkOut(packet []byte) error {
	defer c.complete()

	if c.remaining > 0 {
		return c.fragment(packet)
	}

	if err := ParseHeader(packet, &c.hdr); err != nil {
		return err
	}
	switch c.hdr.MsgID {
	case MsgDevDepMsgOut:
		size := int(c.hdr.TransferSize)
		if err := c.engine.OnBulkOutStart(size); err != nil {
			return err
		}
		c.outTag = c.hdr.Tag
		c.remaining = size
		c.eom = c.hdr.EOM()
		return c.fragment(packet[HeaderSize:])

	case MsgRequestDevDepMsgIn:
		c.inTag = c.hdr.Tag
		out := c.engine.OnBulkInRequest(int(c.hdr.TransferSize))
		pkg.LogDebug(pkg.ComponentTransfer, "REQUEST_DEV_DEP_MSG_IN",
			"tag", c.inTag,
			"max", c.hdr.TransferSize,
			"outcome", out.String())
		if out.Err != nil {
			return fmt.Errorf("bulk-in: %w", out.Err)
		}
		return nil

	case MsgTrigger:
		c.engine.Trigger()
		return nil

	default:
		return fmt.Errorf("MsgID %d: %w", c.hdr.MsgID, pkg.ErrNotSupported)
	}
}

// fragment feeds transfer data to the engine, dropping alignment padding.
func (c *Class) fragment(data []byte) error {
	n := min(len(data), c.remaining)
	c.remaining -= n
	err := c.engine.OnFragment(data[:n], c.remaining == 0 && c.eom)
	if err != nil {
		c.remaining = 0
	}
	return err
}

// Advance forwards a tick to the engine. An error means a bulk-in packet
// could not be written.
func (c *Class) Advance(now time.Time) error {
	err := c.engine.Advance(now)
	c.complete()
	if err != nil {
		return fmt.Errorf("bulk-in: %w", err)
	}
	return nil
}

// RequestInput implements Port. Bulk-out is always armed.
func (c *Class) RequestInput() {}

// Transmit implements Port by sending a DEV_DEP_MSG_IN packet.
func (c *Class) Transmit(data []byte, final bool) error {
	h := Header{
		MsgID:        MsgDevDepMsgIn,
		Tag:          c.inTag,
		TransferSize: uint32(len(data)),
	}
	if final {
		h.Attributes = AttrEOM
	}
	c.txBuf = AppendMessage(c.txBuf[:0], h, data)
	if err := c.out.WritePacket(c.txBuf); err != nil {
		return err
	}
	c.sent++
	return nil
}

// complete acknowledges packets written since the last engine call. The
// acknowledgement is deferred so the engine is never re-entered from
// inside Transmit.
func (c *Class) complete() {
	for c.sent > 0 {
		c.sent--
		c.engine.OnBulkInComplete()
	}
}

// HandleControl processes a class-specific control request and returns
// the data stage of the response. An error means the control endpoint
// should stall.
func (c *Class) HandleControl(req ControlRequest) ([]byte, error) {
	pkg.LogDebug(pkg.ComponentTransfer, "control request",
		"request", req.Request,
		"value", req.Value)

	switch req.Request {
	case RequestInitiateAbortBulkOut:
		c.remaining = 0
		c.engine.OnAbortOut()
		return []byte{byte(StatusSuccess), c.outTag}, nil

	case RequestCheckAbortBulkOutStatus:
		resp := make([]byte, 8)
		resp[0] = byte(StatusSuccess)
		return resp, nil

	case RequestInitiateAbortBulkIn:
		c.engine.OnAbortIn()
		return []byte{byte(StatusSuccess), c.inTag}, nil

	case RequestCheckAbortBulkInStatus:
		resp := make([]byte, 8)
		resp[0] = byte(StatusSuccess)
		return resp, nil

	case RequestInitiateClear:
		c.remaining = 0
		c.engine.OnClear()
		return []byte{byte(StatusSuccess)}, nil

	case RequestCheckClearStatus:
		return []byte{byte(StatusSuccess), 0}, nil

	case RequestGetCapabilities:
		resp := make([]byte, CapabilitiesSize)
		caps := c.engine.Capabilities()
		caps.MarshalTo(resp, StatusSuccess)
		return resp, nil

	case RequestIndicatorPulse:
		c.engine.IndicatorPulse()
		return []byte{byte(StatusSuccess)}, nil

	case RequestReadStatusByte:
		stb := c.engine.ReadStatusByte()
		return []byte{byte(StatusSuccess), byte(req.Value & 0x7F), byte(stb)}, nil

	default:
		return nil, fmt.Errorf("control request %d: %w", req.Request, pkg.ErrNotSupported)
	}
}

// ControlRequestSize is the wire size of a ControlRequest.
const ControlRequestSize = 7

// MarshalTo writes the request to buf. Returns the number of bytes
// written, or 0 if buf is too small.
func (r *ControlRequest) MarshalTo(buf []byte) int {
	if len(buf) < ControlRequestSize {
		return 0
	}
	buf[0] = r.Request
	binary.LittleEndian.PutUint16(buf[1:3], r.Value)
	binary.LittleEndian.PutUint16(buf[3:5], r.Index)
	binary.LittleEndian.PutUint16(buf[5:7], r.Length)
	return ControlRequestSize
}

// ParseControlRequest decodes a request written by MarshalTo. Returns
// false if data is too short.
func ParseControlRequest(data []byte, out *ControlRequest) bool {
	if len(data) < ControlRequestSize {
		return false
	}
	out.Request = data[0]
	out.Value = binary.LittleEndian.Uint16(data[1:3])
	out.Index = binary.LittleEndian.Uint16(data[3:5])
	out.Length = binary.LittleEndian.Uint16(data[5:7])
	return true
}
