package store

import "errors"

// Domain errors for the store package.
var (
	// ErrInvalidConnectionState is returned for ReconnectError=true while connected.
	ErrInvalidConnectionState = errors.New("store: reconnect error set while connected")

	// ErrInvalidPayload is returned when an update payload is nil or not JSON-representable.
	ErrInvalidPayload = errors.New("store: invalid payload")

	// ErrNoConfig is returned when a proposal is made before any config is known.
	ErrNoConfig = errors.New("store: no configuration")

	// ErrNoSnapshot is returned by repositories with nothing persisted yet.
	ErrNoSnapshot = errors.New("store: no persisted snapshot")
)
