package bus

import "errors"

// Domain errors.
var (
	// ErrSendFailed is returned when a live connection rejects a message.
	ErrSendFailed = errors.New("bus: send failed")

	// ErrEncode is returned when a message cannot be marshalled.
	ErrEncode = errors.New("bus: encoding message")

	// ErrInvalidRecipient is returned for an empty plugin or context id.
	ErrInvalidRecipient = errors.New("bus: invalid recipient")
)
