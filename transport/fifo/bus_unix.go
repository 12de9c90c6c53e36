//go:build unix

package fifo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/ardnew/relaytmc/pkg"
)

// Pipe file names within a device directory.
const (
	PipeHostToDevice = "host_to_device"
	PipeDeviceToHost = "device_to_host"
)

// Bus is the device side of a named-pipe pair.
type Bus struct {
	busDir    string
	deviceDir string
	uuid      string

	hostToDevice *os.File // device reads
	deviceToHost *os.File // device writes
}

// generateUUID returns a random version 4 UUID in hex.
func generateUUID() (string, error) {
	var uuid [16]byte
	if _, err := rand.Read(uuid[:]); err != nil {
		return "", err
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x40
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return hex.EncodeToString(uuid[:]), nil
}

// CreateBus creates a device directory under busDir with its two pipes
// and opens the device ends.
func CreateBus(busDir string) (*Bus, error) {
	uuid, err := generateUUID()
	if err != nil {
		return nil, fmt.Errorf("generate uuid: %w", err)
	}
	b := &Bus{
		busDir:    busDir,
		uuid:      uuid,
		deviceDir: filepath.Join(busDir, "device-"+uuid),
	}
	if err := os.MkdirAll(b.deviceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create device dir: %w", err)
	}

	for _, name := range []string{PipeHostToDevice, PipeDeviceToHost} {
		if err := mkfifo(filepath.Join(b.deviceDir, name)); err != nil {
			b.Close()
			return nil, err
		}
	}

	// Open with O_RDWR|O_NONBLOCK so open never waits for the host.
	if b.hostToDevice, err = openPipe(b.deviceDir, PipeHostToDevice); err != nil {
		b.Close()
		return nil, err
	}
	if b.deviceToHost, err = openPipe(b.deviceDir, PipeDeviceToHost); err != nil {
		b.Close()
		return nil, err
	}

	pkg.LogInfo(pkg.ComponentTransport, "fifo bus created",
		"busDir", busDir,
		"deviceDir", b.deviceDir)
	return b, nil
}

// DeviceDir returns the device directory the host should dial.
func (b *Bus) DeviceDir() string { return b.deviceDir }

// UUID returns the device instance identifier.
func (b *Bus) UUID() string { return b.uuid }

// Reader returns the stream of frames from the host.
func (b *Bus) Reader() io.Reader { return b.hostToDevice }

// Writer returns the stream of frames to the host.
func (b *Bus) Writer() io.Writer { return b.deviceToHost }

// Close closes both pipes and removes the device directory.
func (b *Bus) Close() error {
	if b.hostToDevice != nil {
		b.hostToDevice.Close()
		b.hostToDevice = nil
	}
	if b.deviceToHost != nil {
		b.deviceToHost.Close()
		b.deviceToHost = nil
	}
	return os.RemoveAll(b.deviceDir)
}

// Dial opens the host ends of the pipes in deviceDir.
func Dial(deviceDir string) (*Client, error) {
	w, err := openPipe(deviceDir, PipeHostToDevice)
	if err != nil {
		return nil, err
	}
	r, err := openPipe(deviceDir, PipeDeviceToHost)
	if err != nil {
		w.Close()
		return nil, err
	}
	c := NewClient(r, w)
	c.closers = append(c.closers, r, w)
	return c, nil
}

// Devices lists the device directories present under busDir.
func Devices(busDir string) ([]string, error) {
	return filepath.Glob(filepath.Join(busDir, "device-*"))
}

func mkfifo(path string) error {
	os.Remove(path)
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", filepath.Base(path), err)
	}
	return nil
}

func openPipe(dir, name string) (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}
