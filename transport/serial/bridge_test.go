package serial

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/relaytmc/relay"
	"github.com/ardnew/relaytmc/usbtmc"
)

type bridgeFixture struct {
	bridge *Bridge
	engine *usbtmc.Engine
	mem    *relay.Memory
	out    *bytes.Buffer
	now    time.Time
}

func newBridgeFixture(t *testing.T, opts ...Option) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		mem: relay.NewMemory(8, relay.ActiveLow),
		out: &bytes.Buffer{},
		now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	e, err := usbtmc.NewEngine(f.mem,
		usbtmc.WithClock(func() time.Time { return f.now }),
		usbtmc.WithResponseDelay(10*time.Millisecond),
		usbtmc.WithIdentity(usbtmc.StaticIdentity("RELAY1:EN 1\nRELAY1:EN?\nhttps://github.com/charkster/relay_usbtmc")))
	require.NoError(t, err)
	f.engine = e
	f.bridge = NewBridge(e, f.out, opts...)
	return f
}

func (f *bridgeFixture) line(t *testing.T, s string) {
	t.Helper()
	require.NoError(t, f.bridge.HandleLine([]byte(s)))
}

func (f *bridgeFixture) settle() {
	for i := 0; i < 100; i++ {
		f.now = f.now.Add(time.Millisecond)
		f.bridge.Advance(f.now)
	}
}

func TestBridge_SetAndQuery(t *testing.T) {
	f := newBridgeFixture(t)

	f.line(t, "RELAY2:EN 1\r\n")
	assert.Empty(t, f.out.String(), "reply waits for the response delay")
	f.settle()
	assert.Equal(t, "\n", f.out.String())

	f.out.Reset()
	f.line(t, "relay2:en?")
	f.settle()
	assert.Equal(t, "1\n", f.out.String())
	assert.Equal(t, usbtmc.PhaseIdle, f.engine.Phase())
}

func TestBridge_Identify(t *testing.T) {
	f := newBridgeFixture(t)

	f.line(t, "*IDN?")
	f.settle()
	assert.Equal(t, "RELAY1:EN 1\nRELAY1:EN?\nhttps://github.com/charkster/relay_usbtmc\n", f.out.String())
}

func TestBridge_LoopbackChunked(t *testing.T) {
	f := newBridgeFixture(t, WithMaxPacket(16))
	msg := strings.Repeat("0123456789", 10)

	f.line(t, msg)
	f.settle()
	assert.Equal(t, msg+"\n", f.out.String())
	assert.False(t, f.engine.Pending())
}

func TestBridge_DelayHasNoReply(t *testing.T) {
	f := newBridgeFixture(t)

	f.line(t, "delay 0")
	f.settle()
	assert.Empty(t, f.out.String())
	assert.Equal(t, time.Duration(0), f.engine.Delay())

	f.line(t, "*rst")
	f.now = f.now.Add(time.Millisecond)
	f.bridge.Advance(f.now)
	f.now = f.now.Add(time.Millisecond)
	f.bridge.Advance(f.now)
	assert.Equal(t, "\n", f.out.String())
}

func TestBridge_Escapes(t *testing.T) {
	f := newBridgeFixture(t)

	f.line(t, "!trg")
	f.line(t, "!STB")
	assert.Equal(t, "64\n", f.out.String())

	f.out.Reset()
	f.line(t, "!stb")
	assert.Equal(t, "0\n", f.out.String())

	f.out.Reset()
	f.line(t, "RELAY1:EN 1")
	f.line(t, "!clr")
	f.settle()
	assert.Empty(t, f.out.String(), "clear discards the pending reply")
	assert.Zero(t, f.engine.Status())

	f.line(t, "!bogus")
	assert.Empty(t, f.out.String())
}

func TestBridge_OverflowDropped(t *testing.T) {
	f := newBridgeFixture(t)

	f.line(t, strings.Repeat("x", usbtmc.DefaultBufferSize+1))
	f.settle()
	assert.Empty(t, f.out.String())
	assert.Equal(t, usbtmc.PhaseIdle, f.engine.Phase())

	f.line(t, "")
	assert.Equal(t, usbtmc.PhaseIdle, f.engine.Phase(), "blank lines are ignored")
}

func TestBridge_Serve(t *testing.T) {
	mem := relay.NewMemory(8, relay.ActiveLow)
	e, err := usbtmc.NewEngine(mem, usbtmc.WithResponseDelay(0))
	require.NoError(t, err)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	b := NewBridge(e, outW)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, inR) }()

	replies := bufio.NewReader(outR)
	_, err = io.WriteString(inW, "RELAY7:EN 1\n")
	require.NoError(t, err)
	reply, err := replies.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\n", reply)

	_, err = io.WriteString(inW, "RELAY7:EN?\n")
	require.NoError(t, err)
	reply, err = replies.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "1\n", reply)

	require.NoError(t, inW.Close())
	require.NoError(t, <-done)
}

var errBrokenPipe = errors.New("broken pipe")

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errBrokenPipe }

func TestBridge_WriteFailure(t *testing.T) {
	f := newBridgeFixture(t)
	b := NewBridge(f.engine, brokenWriter{})

	require.NoError(t, b.HandleLine([]byte("RELAY1:EN 1")), "reply not due yet")

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		f.now = f.now.Add(time.Millisecond)
		err = b.Advance(f.now)
	}
	assert.ErrorIs(t, err, errBrokenPipe)
	assert.True(t, f.engine.Pending(), "reply kept for a later request")

	assert.ErrorIs(t, b.HandleLine([]byte("!stb")), errBrokenPipe)
}
