package volumio

import "errors"

// Domain-specific errors for the Volumio session.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the session cannot be
	// established within the connect timeout, or when reconnection
	// attempts are exhausted.
	ErrConnectionFailed = errors.New("volumio: connection failed")

	// ErrNotConnected is returned by Emit while the session is down.
	// The command is dropped, not queued.
	ErrNotConnected = errors.New("volumio: session not connected")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("volumio: session closed")

	// errMalformedPacket is returned for wire frames that cannot be decoded.
	errMalformedPacket = errors.New("volumio: malformed packet")
)
