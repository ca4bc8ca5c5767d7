package action

import "errors"

// Domain errors for the action package.
var (
	// ErrInvalidContext is returned when a context string cannot be parsed.
	ErrInvalidContext = errors.New("action: invalid context")

	// ErrInvalidInstance is returned when an instance breaks a structural rule.
	ErrInvalidInstance = errors.New("action: invalid instance")

	// ErrUnknownAction is returned when a uuid is not in the catalog.
	ErrUnknownAction = errors.New("action: unknown action")

	// ErrInvalidManifest is returned when a plugin manifest cannot be read.
	ErrInvalidManifest = errors.New("action: invalid manifest")
)
