package mixer

import "errors"

var (
	// ErrNotFound is returned when an operation names a mix that is not in the roster.
	ErrNotFound = errors.New("mix not found")

	// ErrOutOfRange is returned for a channel index outside [0, channel count).
	ErrOutOfRange = errors.New("channel index out of range")
)
