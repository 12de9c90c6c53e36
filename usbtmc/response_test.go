package usbtmc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestResponseMachine_Phases(t *testing.T) {
	m := NewResponseMachine(100 * time.Millisecond)
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.False(t, m.Advance(epoch.Add(time.Hour)), "idle never advances")

	m.Queue(epoch)
	assert.Equal(t, PhaseQueued, m.Phase())
	assert.Zero(t, m.Status())

	assert.False(t, m.Advance(epoch.Add(99*time.Millisecond)))
	assert.Equal(t, PhaseQueued, m.Phase())

	assert.True(t, m.Advance(epoch.Add(100*time.Millisecond)))
	assert.Equal(t, PhaseSettling, m.Phase())
	assert.True(t, m.Status().Has(STBMAV|STBSRQ))

	assert.False(t, m.Advance(epoch.Add(199*time.Millisecond)))
	assert.True(t, m.Advance(epoch.Add(200*time.Millisecond)))
	assert.Equal(t, PhaseReady, m.Phase())

	assert.False(t, m.Advance(epoch.Add(time.Hour)), "ready waits for completion")

	m.Finish()
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Equal(t, STBSRQ, m.Status())
}

func TestResponseMachine_CatchUp(t *testing.T) {
	m := NewResponseMachine(0)
	m.Queue(epoch)
	assert.True(t, m.Advance(epoch))
	assert.Equal(t, PhaseReady, m.Phase())
	assert.True(t, m.Status().Has(STBMAV|STBSRQ))

	m = NewResponseMachine(10 * time.Millisecond)
	m.Queue(epoch)
	assert.True(t, m.Advance(epoch.Add(25*time.Millisecond)))
	assert.Equal(t, PhaseReady, m.Phase())
}

func TestResponseMachine_DeadlineBased(t *testing.T) {
	m := NewResponseMachine(10 * time.Millisecond)
	m.Queue(epoch)

	// Observed late, the second interval still runs from the first deadline.
	assert.True(t, m.Advance(epoch.Add(17*time.Millisecond)))
	assert.Equal(t, PhaseSettling, m.Phase())
	assert.False(t, m.Advance(epoch.Add(19*time.Millisecond)))
	assert.True(t, m.Advance(epoch.Add(20*time.Millisecond)))
	assert.Equal(t, PhaseReady, m.Phase())
}

func TestResponseMachine_SetDelay(t *testing.T) {
	m := NewResponseMachine(-time.Second)
	assert.Zero(t, m.Delay())

	assert.Equal(t, MaxResponseDelay, m.SetDelay(time.Minute))
	assert.Equal(t, MaxResponseDelay, m.Delay())

	assert.Equal(t, 5*time.Millisecond, m.SetDelay(5*time.Millisecond))
}

func TestResponseMachine_StatusByte(t *testing.T) {
	m := NewResponseMachine(0)

	m.RequestService()
	assert.Equal(t, STBSRQ, m.Status())
	assert.Equal(t, STBSRQ, m.ReadStatus())
	assert.Zero(t, m.ReadStatus(), "SRQ cleared by read")

	m.Queue(epoch)
	m.Advance(epoch.Add(time.Millisecond))
	assert.Equal(t, STBMAV|STBSRQ, m.ReadStatus())
	assert.Equal(t, STBMAV, m.Status(), "MAV survives a status read")

	m.Cancel()
	assert.Zero(t, m.Status())
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestResponseMachine_QueueRestarts(t *testing.T) {
	m := NewResponseMachine(10 * time.Millisecond)
	m.Queue(epoch)
	m.Advance(epoch.Add(11 * time.Millisecond))
	assert.Equal(t, PhaseSettling, m.Phase())

	m.Queue(epoch.Add(12 * time.Millisecond))
	assert.Equal(t, PhaseQueued, m.Phase())
	assert.False(t, m.Advance(epoch.Add(21*time.Millisecond)))
	assert.True(t, m.Advance(epoch.Add(22*time.Millisecond)))
	assert.Equal(t, PhaseSettling, m.Phase())
}

func TestStatusByte_String(t *testing.T) {
	assert.Equal(t, "0", StatusByte(0).String())
	assert.Equal(t, "MAV|SRQ", (STBMAV | STBSRQ).String())
	assert.Equal(t, "QUES|0x01", (STBQuestionable | 0x01).String())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "settling", PhaseSettling.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
