package profile

import "errors"

// Domain errors for the profile package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, profile.ErrSlotOutOfRange) {
//	    // ignore events for keys the profile does not have
//	}
var (
	// ErrNotFound is returned when a profile is not loaded.
	ErrNotFound = errors.New("profile: not found")

	// ErrSlotOutOfRange is returned when a position exceeds the device geometry.
	ErrSlotOutOfRange = errors.New("profile: slot out of range")

	// ErrInstanceNotFound is returned when no instance has the requested context.
	ErrInstanceNotFound = errors.New("profile: instance not found")

	// ErrSlotOccupied is returned when binding to a slot that already holds a
	// simple action, or moving onto a non-empty slot.
	ErrSlotOccupied = errors.New("profile: slot occupied")

	// ErrControllerUnsupported is returned when an action does not support
	// the slot's controller kind.
	ErrControllerUnsupported = errors.New("profile: controller not supported by action")

	// ErrControllerMismatch is returned when moving between controller kinds.
	ErrControllerMismatch = errors.New("profile: controller kinds differ")

	// ErrReadOnly is returned when a mutation is attempted inside Read.
	ErrReadOnly = errors.New("profile: read-only transaction")

	// ErrInvalidID is returned for empty profile ids or ids containing '.'.
	ErrInvalidID = errors.New("profile: invalid id")
)

// ErrExists is returned when renaming onto a profile id that is already on disk.
var ErrExists = errors.New("profile: already exists")
