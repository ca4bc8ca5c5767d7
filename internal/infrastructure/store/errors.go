package store

import "errors"

// Domain-specific errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidID is returned when the store id is empty.
	ErrInvalidID = errors.New("store: id cannot be empty")

	// ErrRecoveryFailed is returned when a recovered temp or bak file
	// could not be renamed over the primary.
	ErrRecoveryFailed = errors.New("store: promoting recovered file failed")

	// ErrEncode is returned when the value cannot be serialised.
	ErrEncode = errors.New("store: encoding value failed")

	// ErrLock is returned when the exclusive lock on the temp file cannot be taken.
	ErrLock = errors.New("store: locking temp file failed")
)
