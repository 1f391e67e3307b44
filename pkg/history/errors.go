package history

import "errors"

// Sentinel errors for history operations.
var (
	// ErrDisabled indicates history recording is disabled in configuration.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")

	// ErrUnsupportedPayload indicates an event payload with no field mapping.
	ErrUnsupportedPayload = errors.New("history: unsupported payload kind")

	// ErrClosed indicates the recorder has been closed.
	ErrClosed = errors.New("history: recorder closed")
)
