package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID_IsVersion7(t *testing.T) {
	for _, id := range []string{string(NewRunID()), string(NewPatternID()), string(NewEventID())} {
		u, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), u.Version())
	}
}

func TestNewRunID_TimeOrdered(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Less(t, string(a), string(b))
}

func TestParseRunID(t *testing.T) {
	id := NewRunID()
	got, err := ParseRunID(string(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseRunID("run-1")
	assert.Error(t, err)
}
