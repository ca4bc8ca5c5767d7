package deck

import "errors"

var (
	// ErrInvalidMessage is returned when a driver payload cannot be decoded.
	ErrInvalidMessage = errors.New("deck: invalid message")

	// ErrUnknownEvent is returned for input events the router has no route for.
	ErrUnknownEvent = errors.New("deck: unknown event")

	// ErrUnknownDevice is returned for input from a device that never registered.
	ErrUnknownDevice = errors.New("deck: unknown device")

	// ErrQueueFull is returned when a device worker cannot keep up.
	ErrQueueFull = errors.New("deck: device queue full")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("deck: bridge stopped")
)
