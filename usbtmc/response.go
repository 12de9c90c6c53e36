package usbtmc

import (
	"time"

	"github.com/ardnew/relaytmc/pkg"
)

// Phase is the state of the simulated response delay.
type Phase uint8

// Response phases. The only transitions are
// Idle → Queued → Settling → Ready → Idle, plus any → Idle on clear.
const (
	PhaseIdle     Phase = iota // no response pending
	PhaseQueued                // command dispatched, first delay running
	PhaseSettling              // MAV|SRQ raised, second delay running
	PhaseReady                 // response may be transmitted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseQueued:
		return "queued"
	case PhaseSettling:
		return "settling"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ResponseMachine simulates instrument latency and owns the status byte.
//
// A queued response becomes visible (MAV|SRQ) one delay interval after
// dispatch and transmittable one further interval later, so the observed
// latency is twice the configured delay. Each interval is measured from
// the deadline of the previous one, not from when it was observed, so
// the latency seen by a periodic caller is late by at most one period.
type ResponseMachine struct {
	phase  Phase
	delay  time.Duration
	start  time.Time
	status StatusByte
}

// NewResponseMachine creates an idle machine with the given delay,
// clamped to [0, MaxResponseDelay].
func NewResponseMachine(delay time.Duration) *ResponseMachine {
	m := &ResponseMachine{}
	m.SetDelay(delay)
	return m
}

// Phase returns the current phase.
func (m *ResponseMachine) Phase() Phase { return m.phase }

// Delay returns the per-phase delay.
func (m *ResponseMachine) Delay() time.Duration { return m.delay }

// SetDelay sets the per-phase delay, clamped to [0, MaxResponseDelay],
// and returns the value applied.
func (m *ResponseMachine) SetDelay(d time.Duration) time.Duration {
	switch {
	case d < 0:
		d = 0
	case d > MaxResponseDelay:
		d = MaxResponseDelay
	}
	m.delay = d
	return d
}

// Queue starts a response cycle at now. A cycle already in progress is
// restarted.
func (m *ResponseMachine) Queue(now time.Time) {
	m.start = now
	m.transition(PhaseQueued)
}

// Advance moves the machine forward to now and returns true if the phase
// changed. Intervals that have already elapsed are all applied, so one
// late call may go from Queued straight to Ready.
func (m *ResponseMachine) Advance(now time.Time) bool {
	changed := false
	for {
		switch m.phase {
		case PhaseQueued:
			if now.Sub(m.start) < m.delay {
				return changed
			}
			m.start = m.start.Add(m.delay)
			m.status |= STBMAV | STBSRQ
			m.transition(PhaseSettling)
		case PhaseSettling:
			if now.Sub(m.start) < m.delay {
				return changed
			}
			m.transition(PhaseReady)
		default:
			return changed
		}
		changed = true
	}
}

// Finish returns to Idle after a response completes and clears MAV.
func (m *ResponseMachine) Finish() {
	m.status &^= STBMAV
	m.transition(PhaseIdle)
}

// Cancel abandons any cycle and clears every status bit.
func (m *ResponseMachine) Cancel() {
	m.status = 0
	m.transition(PhaseIdle)
}

// Idle forces the machine to Idle without touching the status byte.
func (m *ResponseMachine) Idle() {
	m.transition(PhaseIdle)
}

// Status returns the status byte without side effects.
func (m *ResponseMachine) Status() StatusByte { return m.status }

// ReadStatus returns the status byte and clears SRQ.
func (m *ResponseMachine) ReadStatus() StatusByte {
	old := m.status
	m.status &^= STBSRQ
	return old
}

// RequestService raises SRQ.
func (m *ResponseMachine) RequestService() {
	m.status |= STBSRQ
}

func (m *ResponseMachine) transition(to Phase) {
	if m.phase == to {
		return
	}
	pkg.LogDebug(pkg.ComponentResponse, "phase transition",
		"from", m.phase.String(),
		"to", to.String(),
		"status", m.status.String())
	m.phase = to
}
