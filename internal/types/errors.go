package types

import "github.com/cockroachdb/errors"

// Sentinel errors for tpattern operations.
var (
	// ErrRoundLimitExceeded indicates a fixed-point loop hit its configured round cap.
	ErrRoundLimitExceeded = errors.New("round limit exceeded")

	// ErrInvalidTimestamps indicates an event ends before it starts.
	ErrInvalidTimestamps = errors.New("last timestamp before first timestamp")

	// ErrUnknownEventType indicates a label outside the configured vocabulary.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrEmptyLabel indicates a record without an event type label.
	ErrEmptyLabel = errors.New("empty event type label")

	// ErrInvalidLabel indicates a label containing control characters.
	ErrInvalidLabel = errors.New("event type label contains control characters")

	// ErrInvalidConfig indicates an out-of-range configuration value.
	ErrInvalidConfig = errors.New("invalid configuration")
)
