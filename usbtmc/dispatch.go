package usbtmc

import (
	"time"

	"github.com/ardnew/relaytmc/pkg"
)

// ResponseKind tags the payload a dispatched command will answer with.
type ResponseKind uint8

// Response kinds.
const (
	ResponseNone     ResponseKind = iota // no response cycle (delay command)
	ResponseIdentity                     // identification string
	ResponseChannel                      // "0" or "1"
	ResponseAck                          // empty acknowledgement, "\n"
	ResponseLoopback                     // echo of an unrecognized message
)

// String returns the response kind name.
func (k ResponseKind) String() string {
	switch k {
	case ResponseNone:
		return "none"
	case ResponseIdentity:
		return "identity"
	case ResponseChannel:
		return "channel"
	case ResponseAck:
		return "ack"
	case ResponseLoopback:
		return "loopback"
	default:
		return "unknown"
	}
}

// SingleChunk reports whether responses of this kind are always sent as
// one terminal chunk, truncated to the request length if necessary.
func (k ResponseKind) SingleChunk() bool {
	return k == ResponseIdentity || k == ResponseChannel || k == ResponseAck
}

// ackPayload terminates an empty USB488 response.
var ackPayload = []byte("\n")

// Action is the result of dispatching one complete message.
type Action struct {
	Command  Command
	Argument int           // parsed argument for set and delay commands
	Delay    time.Duration // new response delay for the delay command
	Response ResponseKind
	Payload  []byte
	Err      error // backend failure while applying the side effect
}

// Dispatcher recognizes complete messages and applies their side effects.
type Dispatcher struct {
	table    *Table
	outputs  Outputs
	identity Identity
}

// NewDispatcher creates a dispatcher over table. outputs must cover every
// channel in the table.
func NewDispatcher(table *Table, outputs Outputs, identity Identity) *Dispatcher {
	if identity == nil {
		identity = StaticIdentity("")
	}
	return &Dispatcher{table: table, outputs: outputs, identity: identity}
}

// Dispatch matches msg against the table, applies side effects
// synchronously, and returns the response to defer.
func (d *Dispatcher) Dispatch(msg []byte) Action {
	cmd, ok := d.table.Match(msg)
	if !ok {
		payload := make([]byte, len(msg))
		copy(payload, msg)
		pkg.LogDebug(pkg.ComponentDispatch, "unrecognized command, loopback",
			"bytes", len(msg))
		return Action{Response: ResponseLoopback, Payload: payload}
	}

	act := Action{Command: cmd}
	switch cmd.Kind {
	case CommandIdentify:
		act.Response = ResponseIdentity
		act.Payload = d.identity.Identification()

	case CommandReset:
		act.Response = ResponseAck
		act.Payload = ackPayload
		act.Err = d.reset()

	case CommandSetChannel:
		act.Argument = ParseInt(Argument(msg))
		act.Response = ResponseAck
		act.Payload = ackPayload
		act.Err = d.outputs.Set(cmd.Channel, act.Argument != 0)

	case CommandQueryChannel:
		act.Response = ResponseChannel
		on, err := d.outputs.Get(cmd.Channel)
		act.Err = err
		if on && err == nil {
			act.Payload = []byte("1")
		} else {
			act.Payload = []byte("0")
		}

	case CommandDelay:
		act.Argument = ParseInt(Argument(msg))
		act.Delay = ClampDelay(act.Argument)
		act.Response = ResponseNone
	}

	if act.Err != nil {
		pkg.LogWarn(pkg.ComponentDispatch, "output backend failed",
			"command", cmd.Kind.String(),
			"channel", cmd.Channel,
			"error", act.Err)
	} else {
		pkg.LogDebug(pkg.ComponentDispatch, "command dispatched",
			"command", cmd.Kind.String(),
			"channel", cmd.Channel,
			"argument", act.Argument)
	}
	return act
}

func (d *Dispatcher) reset() error {
	err := d.outputs.Reset()
	if aux, ok := d.outputs.(AuxOutput); ok {
		if auxErr := aux.ClearAux(); err == nil {
			err = auxErr
		}
	}
	return err
}

// ClampDelay converts a millisecond argument to a response delay in
// [0, MaxResponseDelay].
func ClampDelay(ms int) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < 0:
		return 0
	case d > MaxResponseDelay:
		return MaxResponseDelay
	}
	return d
}
