package device

import "errors"

var (
	// ErrDeviceNotFound is returned for an id that is not connected.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when a record fails Validate.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrNamespaceDenied is returned when a plugin touches a device in a
	// namespace it has not claimed.
	ErrNamespaceDenied = errors.New("device: plugin not registered for namespace")
)
