// Package main sends commands to a relay device served on a FIFO bus.
//
// Each argument is one command. Plain commands are written as a
// DEV_DEP_MSG_OUT and, unless the command is a delay, their response is
// read back and printed. Arguments beginning with '!' issue class
// requests instead:
//
//	!stb    READ_STATUS_BYTE
//	!clr    INITIATE_CLEAR / CHECK_CLEAR_STATUS
//	!trg    TRIGGER
//	!caps   GET_CAPABILITIES
//	!pulse  INDICATOR_PULSE
//
// Usage:
//
//	tmcquery [options] <command>...
//
// Options:
//
//	-dev path     Device directory (default: first device on -bus)
//	-bus path     Bus directory (default: $TMPDIR/usbtmc-bus)
//	-timeout d    Per-command timeout (default: 2s)
//	-read n       Bulk-in transfer size
//	-v            Enable verbose (debug) logging
//	-json         Use JSON log format
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardnew/relaytmc/config"
	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/transport/fifo"
)

const component = pkg.ComponentTransport

func main() {
	devDir := flag.String("dev", "", "device directory")
	busDir := flag.String("bus", config.DefaultBusDir, "bus directory")
	timeout := flag.Duration("timeout", 2*time.Second, "per-command timeout")
	readSize := flag.Int("read", fifo.DefaultReadSize, "bulk-in transfer size")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: tmcquery [options] <command>...")
		os.Exit(2)
	}

	dir := *devDir
	if dir == "" {
		devices, err := fifo.Devices(*busDir)
		if err != nil || len(devices) == 0 {
			pkg.LogError(component, "no device found", "bus", *busDir, "error", err)
			os.Exit(1)
		}
		dir = devices[0]
	}

	client, err := fifo.Dial(dir)
	if err != nil {
		pkg.LogError(component, "dial failed", "device", dir, "error", err)
		os.Exit(1)
	}
	defer client.Close()
	client.SetReadSize(*readSize)

	// Set up context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	for _, arg := range flag.Args() {
		out, err := run(ctx, client, arg, *timeout)
		if err != nil {
			pkg.LogError(component, "command failed", "command", arg, "error", err)
			client.Close()
			os.Exit(1)
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}

// run executes one command argument and returns the text to print.
func run(parent context.Context, c *fifo.Client, arg string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	switch strings.ToLower(arg) {
	case "!stb":
		stb, err := c.ReadStatusByte(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d (%s)", uint8(stb), stb), nil

	case "!clr":
		return "", c.Clear(ctx)

	case "!trg":
		return "", c.Trigger()

	case "!caps":
		caps, err := c.Capabilities(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%+v", caps), nil

	case "!pulse":
		return "", c.IndicatorPulse(ctx)
	}

	if isDelay(arg) {
		return "", c.Write([]byte(arg))
	}
	resp, err := c.Query(ctx, arg)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(resp), "\r\n"), nil
}

// isDelay reports whether cmd is the delay command, which produces no
// response.
func isDelay(cmd string) bool {
	f := strings.Fields(cmd)
	return len(f) > 0 && strings.EqualFold(f[0], "delay")
}
