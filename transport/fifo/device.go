package fifo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/transport"
	"github.com/ardnew/relaytmc/usbtmc"
)

type frame struct {
	typ     FrameType
	payload []byte
}

// Device serves a USBTMC class over framed byte streams.
type Device struct {
	class *usbtmc.Class
	r     io.Reader
	w     io.Writer
	tick  time.Duration
}

// NewDevice attaches engine to the frame streams r (from the host) and w
// (to the host).
func NewDevice(engine *usbtmc.Engine, r io.Reader, w io.Writer) *Device {
	d := &Device{r: r, w: w, tick: transport.DefaultTick}
	d.class = usbtmc.NewClass(engine, d)
	return d
}

// SetTick sets the engine advance period.
func (d *Device) SetTick(tick time.Duration) { d.tick = tick }

// Class returns the class adapter.
func (d *Device) Class() *usbtmc.Class { return d.class }

// WritePacket implements usbtmc.PacketWriter.
func (d *Device) WritePacket(p []byte) error {
	if err := WriteFrame(d.w, FrameBulkIn, p); err != nil {
		return &hostWriteError{err: err}
	}
	return nil
}

// hostWriteError marks a failed write to the host. It ends Serve instead
// of stalling the request that caused it.
type hostWriteError struct{ err error }

func (e *hostWriteError) Error() string { return "write to host: " + e.err.Error() }

func (e *hostWriteError) Unwrap() error { return e.err }

// Serve reads frames from the host and drives the engine until the
// stream ends or ctx is cancelled. A stream ending cleanly returns nil.
func (d *Device) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan frame)
	errc := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			t, payload, err := ReadFrame(d.r)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
					errors.Is(err, os.ErrClosed) {
					err = nil
				}
				errc <- err
				return
			}
			if !transport.Forward(ctx, frames, frame{typ: t, payload: payload}) {
				return
			}
		}
	}()

	pkg.LogInfo(pkg.ComponentTransport, "fifo device serving", "tick", d.tick)

	if err := transport.Pump(ctx, d.tick, frames, d.handle, d.class.Advance); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// handle applies one host frame. Protocol errors stall and are not
// fatal; failing to write to the host is.
func (d *Device) handle(f frame) error {
	switch f.typ {
	case FrameBulkOut:
		if err := d.class.HandleBulkOut(f.payload); err != nil {
			var werr *hostWriteError
			if errors.As(err, &werr) {
				return err
			}
			return d.stall(f.typ, err)
		}
		return nil

	case FrameControl:
		var req usbtmc.ControlRequest
		if !usbtmc.ParseControlRequest(f.payload, &req) {
			return d.stall(f.typ, fmt.Errorf("control request %d bytes: %w",
				len(f.payload), pkg.ErrProtocol))
		}
		resp, err := d.class.HandleControl(req)
		if err != nil {
			return d.stall(f.typ, err)
		}
		if int(req.Length) < len(resp) {
			resp = resp[:req.Length]
		}
		return WriteFrame(d.w, FrameControlResponse, resp)

	default:
		return d.stall(f.typ, fmt.Errorf("frame type %s: %w", f.typ, pkg.ErrProtocol))
	}
}

func (d *Device) stall(t FrameType, reason error) error {
	pkg.LogWarn(pkg.ComponentTransport, "stalling request",
		"frame", t.String(),
		"error", reason)
	return WriteFrame(d.w, FrameStall, stallPayload(t, reason))
}
