package matrix

import "errors"

// Sentinel errors for matrix operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidParameter is returned when an input or output number is
	// outside the device's range.
	ErrInvalidParameter = errors.New("matrix: invalid input or output parameter")

	// ErrInvalidCommand is returned when a command does not match the
	// allow-listed verbs.
	ErrInvalidCommand = errors.New("matrix: command not allowed")

	// ErrNotConnected is returned when the link is down and cannot be
	// (re)established right now.
	ErrNotConnected = errors.New("matrix: not connected")

	// ErrRetriesExhausted is returned when a command failed on every
	// configured attempt.
	ErrRetriesExhausted = errors.New("matrix: retries exhausted")

	// ErrEmptyResponse is returned when the device reply contained no
	// parseable routing information.
	ErrEmptyResponse = errors.New("matrix: empty or unparseable response")

	// ErrLinkClosed is returned when the link has been shut down.
	ErrLinkClosed = errors.New("matrix: link closed")
)
