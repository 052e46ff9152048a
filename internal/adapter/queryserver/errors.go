package queryserver

import "errors"

var (
	// ErrServerClosed is returned when a request is attempted after the
	// channel to the backend has shut down.
	ErrServerClosed = errors.New("query server connection closed")

	// ErrCapabilityMissing is returned before any request is sent when the
	// connected backend lacks a feature the operation requires.
	ErrCapabilityMissing = errors.New("query server does not support this operation")
)
