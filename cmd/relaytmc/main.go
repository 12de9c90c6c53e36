// Package main runs a USBTMC relay device.
//
// The device engine is built from a YAML configuration (see package
// config) and served over one of three transports:
//
//	stdio   newline-delimited commands on stdin, replies on stdout
//	serial  the same line protocol on a serial port
//	fifo    raw USBTMC packets over named pipes under a bus directory
//
// Usage:
//
//	relaytmc [options]
//
// Options:
//
//	-config path  YAML configuration file (default: built-in 8-channel board)
//	-ports        List serial ports and exit
//	-v            Enable verbose (debug) logging
//	-json         Use JSON log format
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardnew/relaytmc/config"
	"github.com/ardnew/relaytmc/pkg"
	"github.com/ardnew/relaytmc/relay"
	"github.com/ardnew/relaytmc/transport/fifo"
	"github.com/ardnew/relaytmc/transport/serial"
	"github.com/ardnew/relaytmc/usbtmc"
)

// component identifies this executable for structured logging.
const component = pkg.ComponentEngine

func main() {
	cfgPath := flag.String("config", "", "YAML configuration file")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	listPorts := flag.Bool("ports", false, "list serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := serial.Ports()
		if err != nil {
			pkg.LogError(component, "port enumeration failed", "error", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		pkg.LogError(component, "config load failed", "error", err)
		os.Exit(1)
	}

	// Set up logging
	level, _ := pkg.ParseLogLevel(cfg.Log.Level)
	format, _ := pkg.ParseLogFormat(cfg.Log.Format)
	if *verbose {
		level = slog.LevelDebug
	}
	if *jsonLog {
		format = pkg.LogFormatJSON
	}
	pkg.SetLogLevel(level)
	pkg.SetLogFormat(format)

	outputs, closeOutputs, err := buildOutputs(cfg)
	if err != nil {
		pkg.LogError(component, "output backend failed", "error", err)
		os.Exit(1)
	}
	defer closeOutputs()

	engine, err := usbtmc.NewEngine(outputs,
		usbtmc.WithCommandFormat(cfg.Device.CommandFormat),
		usbtmc.WithBufferSize(cfg.Device.BufferSize),
		usbtmc.WithResponseDelay(cfg.Response.Delay()),
		usbtmc.WithIdentity(identity(cfg.Device)),
		usbtmc.WithIndicatorPulse(func() {
			pkg.LogInfo(component, "indicator pulse")
		}),
	)
	if err != nil {
		pkg.LogError(component, "engine setup failed", "error", err)
		os.Exit(1)
	}

	// Set up context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		pkg.LogInfo(component, "shutting down")
		cancel()
	}()

	pkg.LogInfo(component, "starting relay device",
		"channels", engine.Channels(),
		"backend", cfg.Backend.Kind,
		"transport", cfg.Transport.Kind)

	if err := serve(ctx, cfg, engine); err != nil && !errors.Is(err, context.Canceled) {
		pkg.LogError(component, "transport failed", "error", err)
		closeOutputs()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func polarity(d config.DeviceConfig) relay.Polarity {
	if d.ActiveHigh() {
		return relay.ActiveHigh
	}
	return relay.ActiveLow
}

func identity(d config.DeviceConfig) usbtmc.Identity {
	if d.Serial != "" {
		return usbtmc.SerialIdentity{Prefix: d.IDN, Serial: d.Serial}
	}
	return usbtmc.StaticIdentity(d.IDN)
}

// buildOutputs opens the configured backend. The returned close function
// is always non-nil.
func buildOutputs(cfg *config.Config) (usbtmc.Outputs, func() error, error) {
	noop := func() error { return nil }
	n := cfg.Device.Channels

	switch cfg.Backend.Kind {
	case config.BackendGPIO:
		g, err := relay.OpenGPIO(cfg.Backend.GPIO.Pins, polarity(cfg.Device))
		if err != nil {
			return nil, noop, err
		}
		// Leave relays released on exit.
		return g, g.Reset, nil

	case config.BackendModbus:
		mc := cfg.Backend.Modbus
		m, err := relay.DialModbus(relay.ModbusConfig{
			Mode:     mc.Mode,
			Address:  mc.Address,
			BaudRate: mc.BaudRate,
			SlaveID:  mc.SlaveID,
			CoilBase: mc.CoilBase,
			Channels: n,
			Timeout:  mc.Timeout(),
			Polarity: polarity(cfg.Device),
		})
		if err != nil {
			return nil, noop, err
		}
		return m, m.Close, nil

	default:
		return relay.NewMemory(n, polarity(cfg.Device)), noop, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, engine *usbtmc.Engine) error {
	t := cfg.Transport
	tick := cfg.Response.Tick()

	switch t.Kind {
	case config.TransportSerial:
		port, err := serial.Open(t.Port, t.BaudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		go func() {
			<-ctx.Done()
			port.Close()
		}()
		b := serial.NewBridge(engine, port, serial.WithMaxPacket(t.MaxPacket), serial.WithTick(tick))
		return b.Serve(ctx, port)

	case config.TransportFIFO:
		bus, err := fifo.CreateBus(t.BusDir)
		if err != nil {
			return err
		}
		defer bus.Close()
		fmt.Println(bus.DeviceDir())

		dev := fifo.NewDevice(engine, bus.Reader(), bus.Writer())
		dev.SetTick(tick)
		return dev.Serve(ctx)

	default:
		b := serial.NewBridge(engine, os.Stdout, serial.WithMaxPacket(t.MaxPacket), serial.WithTick(tick))
		return b.Serve(ctx, os.Stdin)
	}
}
