package hid

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device read constants.
const (
	// timevalSize is the width of the struct timeval leading every
	// input_event record. It follows the platform word size: 16 bytes on
	// 64-bit Linux, 8 on 32-bit (Pi images running armhf included).
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

	// eventSize is the size of one input_event record: the timestamp
	// followed by the 2-byte type and code and the 4-byte value.
	eventSize = timevalSize + 8

	// pollInterval bounds how long a read blocks before the cancellation
	// token is checked again. This is the pipeline's only suspension point.
	pollInterval = 250 * time.Millisecond

	// eviocgrab is the evdev exclusive-grab ioctl, _IOW('E', 0x90, int)
	// from linux/input.h. golang.org/x/sys/unix does not define it.
	eviocgrab = 0x40044590
)

// Device is an exclusively grabbed evdev input device.
//
// The device holds an OS-level exclusive grab (EVIOCGRAB) for its whole
// lifetime so no other process receives the reader's keystrokes. Close
// releases the grab and is safe to call more than once and from any exit
// path; only the first call does work.
//
// Concurrency: ReadEvent must be called from a single goroutine. Close may
// be called from any goroutine.
type Device struct {
	path string
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

// Open opens the input device at path and obtains an exclusive grab.
//
// Both failure modes - the node not being openable and the grab being
// refused (typically because another process holds it) - surface as
// ErrDeviceUnavailable.
//
// Parameters:
//   - path: evdev node, e.g. /dev/input/by-id/usb-13ba_Barcode_Reader-event-kbd
//
// Returns:
//   - *Device: Grabbed device ready for reading
//   - error: Wrapping ErrDeviceUnavailable on open or grab failure
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrDeviceUnavailable, path, err)
	}

	if err := unix.IoctlSetInt(int(file.Fd()), eviocgrab, 1); err != nil {
		file.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: grabbing %s: %w", ErrDeviceUnavailable, path, err)
	}

	return &Device{
		path: path,
		file: file,
	}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// ReadEvent blocks until one raw input event is available, the context is
// cancelled, or the device becomes unavailable.
//
// Cancellation is cooperative: the read waits in bounded poll intervals
// and checks ctx between them, so a cancelled pipeline unwinds within one
// interval without leaking the device.
//
// Returns:
//   - Event: The next raw input event
//   - error: ctx.Err() on cancellation, ErrDeviceClosed after Close,
//     ErrDeviceUnavailable if the device vanished
func (d *Device) ReadEvent(ctx context.Context) (Event, error) {
	fd := int32(d.file.Fd())
	buf := make([]byte, eventSize)

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		pollFds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		n, err := unix.Poll(pollFds, int(pollInterval.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return Event{}, fmt.Errorf("%w: polling %s: %w", ErrDeviceUnavailable, d.path, err)
		}
		if n == 0 {
			continue // Timeout, re-check cancellation
		}
		if pollFds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return Event{}, fmt.Errorf("%w: %s hung up", ErrDeviceUnavailable, d.path)
		}

		if _, err := io.ReadFull(d.file, buf); err != nil {
			if errors.Is(err, os.ErrClosed) {
				return Event{}, ErrDeviceClosed
			}
			return Event{}, fmt.Errorf("%w: reading %s: %w", ErrDeviceUnavailable, d.path, err)
		}

		return decodeEvent(buf), nil
	}
}

// decodeEvent parses one input_event record, skipping the timestamp.
func decodeEvent(buf []byte) Event {
	return Event{
		Type:  binary.NativeEndian.Uint16(buf[timevalSize:]),
		Code:  binary.NativeEndian.Uint16(buf[timevalSize+2:]),
		Value: int32(binary.NativeEndian.Uint32(buf[timevalSize+4:])), //nolint:gosec // Kernel value is a signed 32-bit field
	}
}

// Close releases the exclusive grab and closes the device node.
//
// It is idempotent: exactly one ungrab/close happens no matter how many
// exit paths reach it, and later calls return the first result.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		// Ungrab before closing; ignore the error if the device already
		// vanished, the grab dies with the file descriptor anyway.
		_ = unix.IoctlSetInt(int(d.file.Fd()), eviocgrab, 0) //nolint:errcheck // Grab is released on close regardless

		if err := d.file.Close(); err != nil {
			d.closeErr = fmt.Errorf("closing %s: %w", d.path, err)
		}
	})
	return d.closeErr
}
