//go:build !unix

package fifo

import (
	"fmt"
	"io"
	"runtime"

	"github.com/ardnew/relaytmc/pkg"
)

// Pipe file names within a device directory.
const (
	PipeHostToDevice = "host_to_device"
	PipeDeviceToHost = "device_to_host"
)

// Bus is the device side of a named-pipe pair. Named pipes are only
// available on unix systems.
type Bus struct{}

// CreateBus is not supported on this platform.
func CreateBus(string) (*Bus, error) {
	return nil, fmt.Errorf("named pipes on %s: %w", runtime.GOOS, pkg.ErrNotSupported)
}

// DeviceDir returns the empty string.
func (*Bus) DeviceDir() string { return "" }

// UUID returns the empty string.
func (*Bus) UUID() string { return "" }

// Reader returns nil.
func (*Bus) Reader() io.Reader { return nil }

// Writer returns nil.
func (*Bus) Writer() io.Writer { return nil }

// Close does nothing.
func (*Bus) Close() error { return nil }

// Dial is not supported on this platform.
func Dial(string) (*Client, error) {
	return nil, fmt.Errorf("named pipes on %s: %w", runtime.GOOS, pkg.ErrNotSupported)
}

// Devices is not supported on this platform.
func Devices(string) ([]string, error) {
	return nil, fmt.Errorf("named pipes on %s: %w", runtime.GOOS, pkg.ErrNotSupported)
}
