package serial

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/transport"
	"github.com/ardnew/relaytmc/usbtmc"
)

// DefaultMaxPacket is the bulk-in request size used for each chunk.
const DefaultMaxPacket = 64

// Escape lines.
const (
	escapeClear   = "!clr"
	escapeStatus  = "!stb"
	escapeTrigger = "!trg"
)

// Bridge drives an engine from newline-delimited commands.
//
// HandleLine and Advance must be called from one goroutine; Serve does
// so.
type Bridge struct {
	engine    *usbtmc.Engine
	w         io.Writer
	maxPacket int
	tick      time.Duration

	reading bool // a bulk-in request is outstanding for the current reply
	sent    int  // chunks written, awaiting completion
	lastNL  bool // last byte written was a newline
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMaxPacket sets the bulk-in request size.
func WithMaxPacket(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxPacket = n
		}
	}
}

// WithTick sets the engine advance period used by Serve.
func WithTick(d time.Duration) Option {
	return func(b *Bridge) { b.tick = d }
}

// NewBridge attaches a bridge to engine; replies are written to w.
func NewBridge(engine *usbtmc.Engine, w io.Writer, opts ...Option) *Bridge {
	b := &Bridge{
		engine:    engine,
		w:         w,
		maxPacket: DefaultMaxPacket,
		tick:      transport.DefaultTick,
		lastNL:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	engine.SetPort(b)
	return b
}

// HandleLine processes one input line without its terminator. An error
// means a reply could not be written.
func (b *Bridge) HandleLine(line []byte) error {
	if err := b.handleLine(line); err != nil {
		return err
	}
	return b.complete()
}

func (b *Bridge) handleLine(line []byte) error {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil
	}
	if line[0] == '!' {
		return b.escape(line)
	}

	if err := b.engine.OnBulkOutStart(len(line)); err != nil {
		// Rejected like a stalled bulk-out: drop the line, keep serving.
		return nil
	}
	if err := b.engine.OnFragment(line, true); err != nil {
		return nil
	}

	if !b.engine.Pending() {
		b.reading = false
		return nil
	}
	b.reading = true
	return b.engine.OnBulkInRequest(b.maxPacket).Err
}

func (b *Bridge) escape(line []byte) error {
	switch {
	case bytes.EqualFold(line, []byte(escapeClear)):
		b.reading = false
		b.engine.OnClear()
		return nil

	case bytes.EqualFold(line, []byte(escapeStatus)):
		stb := b.engine.ReadStatusByte()
		_, err := fmt.Fprintf(b.w, "%d\n", uint8(stb))
		b.lastNL = true
		return err

	case bytes.EqualFold(line, []byte(escapeTrigger)):
		b.engine.Trigger()
		return nil

	default:
		pkg.LogWarn(pkg.ComponentTransport, "unknown bridge escape",
			"line", string(line))
		return nil
	}
}

// Advance forwards a tick to the engine. An error means a reply could
// not be written.
func (b *Bridge) Advance(now time.Time) error {
	if err := b.engine.Advance(now); err != nil {
		return err
	}
	return b.complete()
}

// RequestInput implements usbtmc.Port. Input is line-buffered by the
// reader, so there is nothing to re-arm.
func (b *Bridge) RequestInput() {}

// Transmit implements usbtmc.Port by writing the chunk to the stream.
func (b *Bridge) Transmit(data []byte, final bool) error {
	if len(data) > 0 {
		if _, err := b.w.Write(data); err != nil {
			return err
		}
		b.lastNL = data[len(data)-1] == '\n'
	}
	if final && !b.lastNL {
		if _, err := b.w.Write([]byte{'\n'}); err != nil {
			return err
		}
		b.lastNL = true
	}
	b.sent++
	return nil
}

// complete acknowledges written chunks and requests the next chunk of a
// reply that is still in progress.
func (b *Bridge) complete() error {
	for b.sent > 0 {
		b.sent--
		b.engine.OnBulkInComplete()
		if !b.reading || !b.engine.Pending() {
			b.reading = false
			continue
		}
		if out := b.engine.OnBulkInRequest(b.maxPacket); out.Err != nil {
			return out.Err
		}
	}
	return nil
}

// Serve reads lines from r and drives the engine until r is exhausted or
// ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, usbtmc.DefaultBufferSize+2), 64*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			if !transport.Forward(ctx, lines, line) {
				return
			}
		}
		errc <- scanner.Err()
	}()

	pkg.LogInfo(pkg.ComponentTransport, "serial bridge serving",
		"max_packet", b.maxPacket,
		"tick", b.tick)

	if err := transport.Pump(ctx, b.tick, lines, b.HandleLine, b.Advance); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}
