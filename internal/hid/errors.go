package hid

import "errors"

// Domain-specific errors for HID device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceUnavailable is returned when the device cannot be opened,
	// exclusive access cannot be obtained, or the device vanishes
	// mid-stream (for example when the reader is unplugged).
	ErrDeviceUnavailable = errors.New("hid: device unavailable")

	// ErrDeviceClosed is returned when reading from a closed device.
	ErrDeviceClosed = errors.New("hid: device closed")
)
