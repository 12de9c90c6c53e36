// Package usbtmc implements the command engine of a USBTMC/USB488 relay
// controller.
//
// The host sends short ASCII commands in bulk-out transfers; the engine
// assembles them, toggles outputs through an [Outputs] backend, and
// answers over bulk-in after a simulated instrument latency.
//
// # Architecture
//
//   - [MessageBuffer] assembles bulk-out fragments into one message
//   - [Table] and [Dispatcher] recognize commands and apply side effects
//   - [ResponseMachine] delays the response and owns the status byte
//   - [Transmitter] streams the response across bulk-in requests
//   - [Engine] ties them together behind the transport boundary
//   - [Class] frames engine traffic as USBTMC bulk messages
//
// # Command Vocabulary
//
// Commands are matched case-insensitively by literal prefix, first match
// wins. For a board with N channels and the default format:
//
//	*idn?            identification string
//	*rst             all channels inactive, "\n"
//	relay<i>:en <n>  channel i enabled if n != 0, "\n"
//	relay<i>:en?     "1" or "0"
//	delay <ms>       per-phase delay, clamped to [0, 10000]; no response
//
// Anything else is echoed back verbatim.
//
// # Response Timing
//
// A dispatched command moves the response machine through
//
//	Idle → Queued → Settling → Ready → Idle
//
// MAV and SRQ are raised on entering Settling, one delay after dispatch;
// the response is transmittable on entering Ready, one delay later.
// Time only advances through [Engine.Advance], so tests drive it with a
// manual clock:
//
//	eng, _ := usbtmc.NewEngine(outputs, usbtmc.WithClock(clk.Now))
//	eng.OnBulkOutStart(len(cmd))
//	eng.OnFragment(cmd, true)
//	clk.Add(300 * time.Millisecond)
//	eng.Advance(clk.Now())
//	out := eng.OnBulkInRequest(64)
//
// # Concurrency
//
// Engine and Class are single-threaded by contract. Transports serialize
// fragment delivery, polls, control requests and ticks onto one goroutine.
package usbtmc
