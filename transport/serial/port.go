package serial

import (
	"fmt"

	goserial "go.bug.st/serial"

	"github.com/ardnew/relaytmc/pkg"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 115200

// Open opens a serial port in 8N1 mode.
func Open(name string, baud int) (goserial.Port, error) {
	if name == "" {
		return nil, fmt.Errorf("serial port name: %w", pkg.ErrNotConfigured)
	}
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
	port, err := goserial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	pkg.LogInfo(pkg.ComponentTransport, "serial port open",
		"port", name,
		"baud", baud)
	return port, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return goserial.GetPortsList()
}
