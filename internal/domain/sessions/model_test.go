package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateOccupying(t *testing.T) {
	assert.True(t, StateActive.Occupying())
	assert.True(t, StateExtended.Occupying())
	assert.False(t, StatePending.Occupying())
	assert.False(t, StateCompleted.Occupying())
	assert.False(t, StateCancelled.Occupying())
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateActive.Terminal())
	assert.False(t, StateExtended.Terminal())
}

func TestAdmissionMode(t *testing.T) {
	tag := "opening-week"
	lineID := int64(7)

	s := &Session{CompTag: &tag}
	mode, ok := s.AdmissionMode().(Comped)
	require.True(t, ok)
	assert.Equal(t, "opening-week", mode.Tag)

	s = &Session{MonthlyLineID: &lineID}
	paid, ok := s.AdmissionMode().(Paid)
	require.True(t, ok)
	require.NotNil(t, paid.MonthlyLineID)
	assert.Equal(t, int64(7), *paid.MonthlyLineID)

	// empty tag means paid, not comped
	empty := ""
	s = &Session{CompTag: &empty}
	_, ok = s.AdmissionMode().(Paid)
	assert.True(t, ok)
}

func TestTotalHours(t *testing.T) {
	s := &Session{DurationHours: 1.0, ExtendedHours: 1.5}
	assert.Equal(t, 2.5, s.TotalHours())
}

func TestSessionMinutesRemaining(t *testing.T) {
	now := time.Now()
	end := now.Add(12 * time.Minute)

	s := &Session{EndTime: &end}
	assert.Equal(t, 12, s.MinutesRemaining(now))

	past := now.Add(-time.Minute)
	s = &Session{EndTime: &past}
	assert.Zero(t, s.MinutesRemaining(now))

	assert.Zero(t, (&Session{}).MinutesRemaining(now))
}
