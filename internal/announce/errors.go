package announce

import "errors"

// Domain-specific errors for the MQTT announcer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected announcer.
	ErrNotConnected = errors.New("announce: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("announce: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("announce: publish failed")

	// ErrDisabled indicates the announcer is disabled in config.
	ErrDisabled = errors.New("announce: disabled in configuration")
)
