package types

import "github.com/google/uuid"

// RunID is a UUIDv7 detection run identifier.
type RunID string

// PatternID is a UUIDv7 identifier of one stored pattern row.
type PatternID string

// EventID is a UUIDv7 identifier assigned to raw events on import.
type EventID string

// NewRunID generates a UUIDv7 run identifier.
// Panics on clock regression.
func NewRunID() RunID {
	return RunID(uuid.Must(uuid.NewV7()).String())
}

// NewPatternID generates a UUIDv7 pattern identifier.
func NewPatternID() PatternID {
	return PatternID(uuid.Must(uuid.NewV7()).String())
}

// NewEventID generates a UUIDv7 event identifier.
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// ParseRunID validates and converts a string to RunID.
func ParseRunID(s string) (RunID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RunID(s), nil
}
