package router

import "errors"

// Domain errors for the router package.
var (
	// ErrProfileSelected is returned when deleting the profile a device shows.
	ErrProfileSelected = errors.New("router: profile is selected")

	// ErrStateOutOfRange is returned when a plugin selects a state the
	// instance does not have.
	ErrStateOutOfRange = errors.New("router: state out of range")

	// ErrDeviceSetup is returned when a device was accepted but its
	// profiles could not be loaded. The device is not left registered.
	ErrDeviceSetup = errors.New("router: device setup failed")
)
