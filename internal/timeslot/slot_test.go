package timeslot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/clinic-booking/internal/timeslot"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 10, hour, min, 0, 0, time.UTC)
}

func slot(t *testing.T, startH, startM, endH, endM int) timeslot.Slot {
	t.Helper()
	s, err := timeslot.New(at(startH, startM), at(endH, endM))
	require.NoError(t, err)
	return s
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b timeslot.Slot
		want bool
	}{
		{"disjoint", slot(t, 9, 0, 10, 0), slot(t, 11, 0, 12, 0), false},
		{"touching endpoints", slot(t, 9, 0, 10, 0), slot(t, 10, 0, 11, 0), false},
		{"partial overlap", slot(t, 9, 0, 10, 0), slot(t, 9, 30, 10, 30), true},
		{"identical", slot(t, 9, 0, 10, 0), slot(t, 9, 0, 10, 0), true},
		{"contained", slot(t, 9, 0, 12, 0), slot(t, 10, 0, 11, 0), true},
		{"one minute overlap", slot(t, 9, 0, 10, 1), slot(t, 10, 0, 11, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			// overlap is symmetric
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestValidate(t *testing.T) {
	_, err := timeslot.New(at(10, 0), at(9, 0))
	assert.ErrorIs(t, err, timeslot.ErrInvalidSlot)

	_, err = timeslot.New(at(9, 0), at(9, 0))
	assert.ErrorIs(t, err, timeslot.ErrInvalidSlot, "zero-width slot is invalid")
}

func TestContains(t *testing.T) {
	outer := slot(t, 9, 0, 12, 0)

	assert.True(t, outer.Contains(slot(t, 9, 0, 12, 0)))
	assert.True(t, outer.Contains(slot(t, 10, 0, 11, 0)))
	assert.False(t, outer.Contains(slot(t, 8, 45, 9, 15)))
	assert.False(t, outer.Contains(slot(t, 11, 45, 12, 15)))
}

func TestOverlapsAny(t *testing.T) {
	blocked := []timeslot.Slot{
		slot(t, 9, 15, 9, 45),
		slot(t, 14, 0, 15, 0),
	}

	assert.True(t, slot(t, 9, 0, 9, 30).OverlapsAny(blocked))
	assert.False(t, slot(t, 10, 0, 10, 30).OverlapsAny(blocked))
	assert.False(t, slot(t, 9, 0, 9, 30).OverlapsAny(nil))
}

func TestDayBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	day, err := timeslot.DayBounds("2025-03-09", ny)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, time.March, 9, 0, 0, 0, 0, ny), day.Start)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, ny), day.End)
	// spring-forward day is 23 hours long
	assert.Equal(t, 23*time.Hour, day.Duration())

	_, err = timeslot.DayBounds("03/09/2025", ny)
	assert.Error(t, err)
}
