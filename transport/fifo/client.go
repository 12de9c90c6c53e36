package fifo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/usbtmc"
)

// Client transfer sizes.
const (
	DefaultPacketSize = 64 // bulk-out packet size
	DefaultReadSize   = 64 // TransferSize of each REQUEST_DEV_DEP_MSG_IN
)

// Client is the host side of a device served by [Device]. It is not
// safe for concurrent use.
type Client struct {
	w          io.Writer
	frames     chan frame
	readErr    error
	done       chan struct{}
	closeOnce  sync.Once
	closers    []io.Closer
	tag        uint8
	statusTag  uint8
	packetSize int
	readSize   int
}

// NewClient creates a client reading device frames from r and writing
// host frames to w.
func NewClient(r io.Reader, w io.Writer) *Client {
	c := &Client{
		w:          w,
		frames:     make(chan frame, 16),
		done:       make(chan struct{}),
		statusTag:  1,
		packetSize: DefaultPacketSize,
		readSize:   DefaultReadSize,
	}
	go c.readLoop(r)
	return c
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.frames)
	for {
		t, payload, err := ReadFrame(r)
		if err != nil {
			c.readErr = err
			return
		}
		select {
		case c.frames <- frame{typ: t, payload: payload}:
		case <-c.done:
			c.readErr = pkg.ErrClosed
			return
		}
	}
}

// SetReadSize sets the TransferSize requested per bulk-in transfer.
func (c *Client) SetReadSize(n int) {
	if n > 0 {
		c.readSize = n
	}
}

// SetPacketSize sets the bulk-out packet size.
func (c *Client) SetPacketSize(n int) {
	if n >= usbtmc.HeaderSize {
		c.packetSize = n
	}
}

// Close stops the client and closes the pipes it opened.
func (c *Client) Close() error {
	var first error
	c.closeOnce.Do(func() {
		close(c.done)
		for _, cl := range c.closers {
			if err := cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	})
	return first
}

func (c *Client) nextTag() uint8 {
	c.tag = usbtmc.NextTag(c.tag)
	return c.tag
}

// Write sends msg as one DEV_DEP_MSG_OUT transfer. A stall caused by
// the transfer is reported by the next call that waits for the device.
func (c *Client) Write(msg []byte) error {
	h := usbtmc.Header{
		MsgID:        usbtmc.MsgDevDepMsgOut,
		Tag:          c.nextTag(),
		TransferSize: uint32(len(msg)),
		Attributes:   usbtmc.AttrEOM,
	}
	wire := usbtmc.AppendMessage(nil, h, msg)
	for len(wire) > 0 {
		n := min(c.packetSize, len(wire))
		if err := WriteFrame(c.w, FrameBulkOut, wire[:n]); err != nil {
			return fmt.Errorf("bulk-out: %w", err)
		}
		wire = wire[n:]
	}
	return nil
}

// Read requests bulk-in transfers until a complete response has been
// received. If ctx ends before the first chunk arrives the error wraps
// pkg.ErrNAK; the device should then be cleared before reuse.
func (c *Client) Read(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		tag := c.nextTag()
		req := usbtmc.Header{
			MsgID:        usbtmc.MsgRequestDevDepMsgIn,
			Tag:          tag,
			TransferSize: uint32(c.readSize),
		}
		if err := WriteFrame(c.w, FrameBulkOut, usbtmc.AppendMessage(nil, req, nil)); err != nil {
			return nil, fmt.Errorf("request bulk-in: %w", err)
		}

		data, eom, err := c.awaitIn(ctx, tag)
		if err != nil {
			if len(out) == 0 && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", pkg.ErrNAK, err)
			}
			return out, err
		}
		out = append(out, data...)
		if eom {
			return out, nil
		}
	}
}

// awaitIn waits for the DEV_DEP_MSG_IN answering tag. Packets answering
// earlier, abandoned requests are discarded.
func (c *Client) awaitIn(ctx context.Context, tag uint8) ([]byte, bool, error) {
	for {
		payload, err := c.await(ctx, FrameBulkIn)
		if err != nil {
			return nil, false, err
		}
		var h usbtmc.Header
		if err := usbtmc.ParseHeader(payload, &h); err != nil {
			return nil, false, err
		}
		if h.MsgID != usbtmc.MsgDevDepMsgIn {
			return nil, false, fmt.Errorf("bulk-in MsgID %d: %w", h.MsgID, pkg.ErrProtocol)
		}
		if h.Tag != tag {
			pkg.LogDebug(pkg.ComponentTransport, "discarding stale bulk-in",
				"tag", h.Tag,
				"want", tag)
			continue
		}
		end := usbtmc.HeaderSize + int(h.TransferSize)
		if end > len(payload) {
			return nil, false, fmt.Errorf("bulk-in TransferSize %d exceeds packet: %w",
				h.TransferSize, pkg.ErrProtocol)
		}
		return payload[usbtmc.HeaderSize:end], h.EOM(), nil
	}
}

// await returns the payload of the next frame of type want. A stall
// frame fails the wait; other frames are discarded.
func (c *Client) await(ctx context.Context, want FrameType) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case f, ok := <-c.frames:
			if !ok {
				if c.readErr == nil || errors.Is(c.readErr, io.EOF) {
					return nil, pkg.ErrClosed
				}
				return nil, c.readErr
			}
			switch f.typ {
			case FrameStall:
				return nil, parseStall(f.payload)
			case want:
				return f.payload, nil
			default:
				pkg.LogDebug(pkg.ComponentTransport, "discarding frame",
					"frame", f.typ.String(),
					"want", want.String())
			}
		}
	}
}

// Query writes cmd and reads the response.
func (c *Client) Query(ctx context.Context, cmd string) ([]byte, error) {
	if err := c.Write([]byte(cmd)); err != nil {
		return nil, err
	}
	return c.Read(ctx)
}

// Trigger sends a USB488 TRIGGER message.
func (c *Client) Trigger() error {
	h := usbtmc.Header{MsgID: usbtmc.MsgTrigger, Tag: c.nextTag()}
	return WriteFrame(c.w, FrameBulkOut, usbtmc.AppendMessage(nil, h, nil))
}

// Control sends a class control request and returns its data stage.
func (c *Client) Control(ctx context.Context, req usbtmc.ControlRequest) ([]byte, error) {
	buf := make([]byte, usbtmc.ControlRequestSize)
	req.MarshalTo(buf)
	if err := WriteFrame(c.w, FrameControl, buf); err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	return c.await(ctx, FrameControlResponse)
}

// controlStatus sends req and checks the USBTMC_status of the response.
func (c *Client) controlStatus(ctx context.Context, req usbtmc.ControlRequest) ([]byte, error) {
	resp, err := c.Control(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, fmt.Errorf("request %d: empty response: %w", req.Request, pkg.ErrProtocol)
	}
	if s := usbtmc.Status(resp[0]); s != usbtmc.StatusSuccess {
		return resp, fmt.Errorf("request %d: status %s: %w", req.Request, s, pkg.ErrProtocol)
	}
	return resp, nil
}

// ReadStatusByte issues READ_STATUS_BYTE. The device clears SRQ.
func (c *Client) ReadStatusByte(ctx context.Context) (usbtmc.StatusByte, error) {
	// bTag for READ_STATUS_BYTE is 2..127.
	c.statusTag++
	if c.statusTag > 127 {
		c.statusTag = 2
	}
	tag := c.statusTag

	resp, err := c.controlStatus(ctx, usbtmc.ControlRequest{
		Request: usbtmc.RequestReadStatusByte,
		Value:   uint16(tag),
		Length:  3,
	})
	if err != nil {
		return 0, err
	}
	if len(resp) < 3 || resp[1] != tag {
		return 0, fmt.Errorf("READ_STATUS_BYTE response % X: %w", resp, pkg.ErrProtocol)
	}
	return usbtmc.StatusByte(resp[2]), nil
}

// Clear issues INITIATE_CLEAR and confirms it with CHECK_CLEAR_STATUS.
func (c *Client) Clear(ctx context.Context) error {
	if _, err := c.controlStatus(ctx, usbtmc.ControlRequest{
		Request: usbtmc.RequestInitiateClear,
		Length:  1,
	}); err != nil {
		return err
	}
	_, err := c.controlStatus(ctx, usbtmc.ControlRequest{
		Request: usbtmc.RequestCheckClearStatus,
		Length:  2,
	})
	return err
}

// Capabilities issues GET_CAPABILITIES.
func (c *Client) Capabilities(ctx context.Context) (usbtmc.Capabilities, error) {
	var caps usbtmc.Capabilities
	resp, err := c.controlStatus(ctx, usbtmc.ControlRequest{
		Request: usbtmc.RequestGetCapabilities,
		Length:  usbtmc.CapabilitiesSize,
	})
	if err != nil {
		return caps, err
	}
	if _, ok := usbtmc.ParseCapabilities(resp, &caps); !ok {
		return caps, fmt.Errorf("GET_CAPABILITIES %d bytes: %w", len(resp), pkg.ErrProtocol)
	}
	return caps, nil
}

// IndicatorPulse issues INDICATOR_PULSE.
func (c *Client) IndicatorPulse(ctx context.Context) error {
	_, err := c.controlStatus(ctx, usbtmc.ControlRequest{
		Request: usbtmc.RequestIndicatorPulse,
		Length:  1,
	})
	return err
}
