package usbtmc

import (
	"fmt"
	"time"

	"github.com/ardnew/relaytmc/pkg"
)

// Port is the outbound side of the transport boundary.
type Port interface {
	// RequestInput re-arms the bulk-out endpoint for the next transfer.
	RequestInput()

	// Transmit sends one bulk-in chunk. final marks end of message.
	Transmit(data []byte, final bool) error
}

type nopPort struct{}

func (nopPort) RequestInput()               {}
func (nopPort) Transmit([]byte, bool) error { return nil }

// Option configures an Engine.
type Option func(*Engine) error

// WithCommandFormat sets the per-channel command format (see
// FormatRelayEnable and FormatGPIORelay).
func WithCommandFormat(format string) Option {
	return func(e *Engine) error {
		e.format = format
		return nil
	}
}

// WithChannels limits the command table to the first n channels of the
// backend.
func WithChannels(n int) Option {
	return func(e *Engine) error {
		if n < 1 || n > e.outputs.Len() {
			return fmt.Errorf("channels %d outside 1..%d: %w",
				n, e.outputs.Len(), pkg.ErrInvalidParameter)
		}
		e.channels = n
		return nil
	}
}

// WithBufferSize sets the inbound message capacity.
func WithBufferSize(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("buffer size %d: %w", n, pkg.ErrInvalidParameter)
		}
		e.buffer = NewMessageBuffer(n)
		return nil
	}
}

// WithResponseDelay sets the initial per-phase response delay.
func WithResponseDelay(d time.Duration) Option {
	return func(e *Engine) error {
		e.machine.SetDelay(d)
		return nil
	}
}

// WithIdentity sets the identification provider.
func WithIdentity(id Identity) Option {
	return func(e *Engine) error {
		e.identity = id
		return nil
	}
}

// WithPort sets the outbound transport port.
func WithPort(p Port) Option {
	return func(e *Engine) error {
		e.SetPort(p)
		return nil
	}
}

// WithClock sets the time source used to stamp dispatched commands.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

// WithCapabilities overrides the GET_CAPABILITIES descriptor.
func WithCapabilities(c Capabilities) Option {
	return func(e *Engine) error {
		e.caps = c
		return nil
	}
}

// WithIndicatorPulse sets the INDICATOR_PULSE handler.
func WithIndicatorPulse(fn func()) Option {
	return func(e *Engine) error {
		e.onPulse = fn
		return nil
	}
}

// Engine is the USBTMC command engine: it assembles bulk-out messages,
// dispatches commands, simulates response latency and streams responses
// over bulk-in.
//
// Engine is not safe for concurrent use. Transports must deliver every
// notification, poll and tick from a single goroutine.
type Engine struct {
	outputs  Outputs
	identity Identity
	format   string
	channels int
	caps     Capabilities
	onPulse  func()
	now      func() time.Time
	port     Port

	buffer     *MessageBuffer
	dispatcher *Dispatcher
	machine    *ResponseMachine
	tx         Transmitter

	parked    bool // a bulk-in request is waiting for Ready
	parkedLen int
}

// NewEngine creates an engine driving outputs.
func NewEngine(outputs Outputs, opts ...Option) (*Engine, error) {
	if outputs == nil {
		return nil, fmt.Errorf("outputs: %w", pkg.ErrNotConfigured)
	}
	e := &Engine{
		outputs:  outputs,
		channels: outputs.Len(),
		caps:     DefaultCapabilities,
		now:      time.Now,
		port:     nopPort{},
		buffer:   NewMessageBuffer(DefaultBufferSize),
		machine:  NewResponseMachine(DefaultResponseDelay),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	table, err := NewTable(e.channels, e.format)
	if err != nil {
		return nil, err
	}
	e.dispatcher = NewDispatcher(table, outputs, e.identity)

	pkg.LogInfo(pkg.ComponentEngine, "engine created",
		"channels", e.channels,
		"buffer", e.buffer.Cap(),
		"delay", e.machine.Delay())
	return e, nil
}

// SetPort replaces the outbound port. A nil port discards output.
func (e *Engine) SetPort(p Port) {
	if p == nil {
		p = nopPort{}
	}
	e.port = p
}

// OnBulkOutStart begins a new inbound transfer of expected bytes. It
// fails with ErrOverflow if the transfer cannot fit the buffer; the
// transport must then reject the transfer.
func (e *Engine) OnBulkOutStart(expected int) error {
	e.buffer.Reset()
	if expected > e.buffer.Cap() {
		pkg.LogWarn(pkg.ComponentEngine, "bulk-out transfer too large",
			"size", expected,
			"capacity", e.buffer.Cap())
		return fmt.Errorf("transfer size %d: %w", expected, pkg.ErrOverflow)
	}
	return nil
}

// OnFragment appends one bulk-out fragment. When final is true the
// assembled message is dispatched.
func (e *Engine) OnFragment(data []byte, final bool) error {
	if err := e.buffer.Append(data, final); err != nil {
		pkg.LogWarn(pkg.ComponentEngine, "rejecting fragment", "error", err)
		return err
	}
	if final {
		e.dispatch()
	}
	e.port.RequestInput()
	return nil
}

func (e *Engine) dispatch() {
	act := e.dispatcher.Dispatch(e.buffer.Bytes())
	e.tx.Load(act.Response, act.Payload)

	if act.Command.Kind == CommandDelay {
		applied := e.machine.SetDelay(act.Delay)
		e.machine.Idle()
		pkg.LogInfo(pkg.ComponentEngine, "response delay set",
			"requested_ms", act.Argument,
			"delay", applied)
		return
	}
	e.machine.Queue(e.now())
}

// OnBulkInRequest handles a bulk-in request for up to maxLen bytes. A
// chunk is also passed to the port. A NAK outcome parks the request until
// the response becomes ready, at which point Advance transmits it. If the
// port fails, the outcome carries the error and the chunk is sent again
// on the next request.
func (e *Engine) OnBulkInRequest(maxLen int) Outcome {
	if !e.tx.Started() && e.machine.Phase() != PhaseReady {
		e.parked = true
		e.parkedLen = maxLen
		pkg.LogDebug(pkg.ComponentTransfer, "bulk-in request parked",
			"phase", e.machine.Phase().String(),
			"max", maxLen)
		return NAK
	}
	e.parked = false
	return e.send(maxLen)
}

func (e *Engine) send(maxLen int) Outcome {
	out := e.tx.Next(maxLen)
	if out.NAK {
		return out
	}
	if err := e.port.Transmit(out.Data, out.Final); err != nil {
		e.tx.Undo()
		pkg.LogWarn(pkg.ComponentTransfer, "transmit failed, chunk kept",
			"bytes", len(out.Data),
			"error", err)
		return Outcome{NAK: true, Err: err}
	}
	return out
}

// OnBulkInComplete acknowledges that the last transmitted chunk reached
// the host. After the final chunk, MAV is cleared and the engine returns
// to Idle.
func (e *Engine) OnBulkInComplete() {
	if e.tx.Terminal() {
		pkg.LogDebug(pkg.ComponentTransfer, "response complete",
			"kind", e.tx.Pending().Kind.String())
		e.tx.Reset()
		e.machine.Finish()
	}
	e.port.RequestInput()
}

// Advance moves the response simulation to now. When the response
// becomes ready and a bulk-in request is parked, its first chunk is
// transmitted. The returned error is the port's Transmit failure.
func (e *Engine) Advance(now time.Time) error {
	if !e.machine.Advance(now) {
		return nil
	}
	if e.machine.Phase() == PhaseReady && e.parked {
		e.parked = false
		return e.send(e.parkedLen).Err
	}
	return nil
}

// OnClear handles INITIATE_CLEAR: every pending message, response and
// status bit is discarded.
func (e *Engine) OnClear() {
	e.cancel("clear")
	e.buffer.Reset()
}

// OnAbortIn handles INITIATE_ABORT_BULK_IN.
func (e *Engine) OnAbortIn() {
	e.cancel("abort bulk-in")
}

// OnAbortOut handles INITIATE_ABORT_BULK_OUT.
func (e *Engine) OnAbortOut() {
	e.cancel("abort bulk-out")
	e.buffer.Reset()
	e.port.RequestInput()
}

func (e *Engine) cancel(reason string) {
	pkg.LogInfo(pkg.ComponentEngine, "response cancelled",
		"reason", reason,
		"phase", e.machine.Phase().String())
	e.parked = false
	e.tx.Reset()
	e.machine.Cancel()
}

// Trigger handles the USB488 TRIGGER message by raising SRQ.
func (e *Engine) Trigger() {
	e.machine.RequestService()
}

// IndicatorPulse handles INDICATOR_PULSE.
func (e *Engine) IndicatorPulse() {
	if e.onPulse != nil {
		e.onPulse()
	}
}

// ReadStatusByte returns the status byte and clears SRQ.
func (e *Engine) ReadStatusByte() StatusByte {
	return e.machine.ReadStatus()
}

// Status returns the status byte without side effects.
func (e *Engine) Status() StatusByte { return e.machine.Status() }

// Capabilities returns the GET_CAPABILITIES descriptor.
func (e *Engine) Capabilities() Capabilities { return e.caps }

// Phase returns the response phase.
func (e *Engine) Phase() Phase { return e.machine.Phase() }

// Delay returns the per-phase response delay.
func (e *Engine) Delay() time.Duration { return e.machine.Delay() }

// Pending reports whether a response cycle is in progress, i.e. whether
// a bulk-in request will eventually be answered.
func (e *Engine) Pending() bool {
	return e.machine.Phase() != PhaseIdle || e.tx.Started()
}

// Response returns the response awaiting transmission.
func (e *Engine) Response() PendingResponse { return e.tx.Pending() }

// Channels returns the number of channels in the command table.
func (e *Engine) Channels() int { return e.channels }
