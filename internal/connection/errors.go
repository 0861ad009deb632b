package connection

import "errors"

// Domain errors for the connection package.
var (
	// ErrNotConnected is returned when a frame is sent while no session is open.
	ErrNotConnected = errors.New("connection: not connected")

	// ErrConnectionLost is returned to callers whose request was in flight
	// when the session ended.
	ErrConnectionLost = errors.New("connection: connection lost")

	// ErrTimeout is returned when the device does not acknowledge in time.
	ErrTimeout = errors.New("connection: acknowledgment timeout")

	// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
	ErrMalformedFrame = errors.New("connection: malformed frame")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("connection: manager closed")
)
