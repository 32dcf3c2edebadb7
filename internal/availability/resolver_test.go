package availability_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.June, 2, hour, min, 0, 0, time.UTC)
}

func slot(startH, startM, endH, endM int) timeslot.Slot {
	return timeslot.Slot{Start: at(startH, startM), End: at(endH, endM)}
}

func starts(slots []timeslot.Slot) []time.Time {
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func TestResolveSlots_SingleWindow(t *testing.T) {
	// 09:00-10:00 window, 30 minute duration, 15 minute increment
	got, err := availability.ResolveSlots(
		[]timeslot.Slot{slot(9, 0, 10, 0)},
		nil,
		30*time.Minute,
		15*time.Minute,
	)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{at(9, 0), at(9, 15), at(9, 30)}, starts(got))
	for _, s := range got {
		assert.Equal(t, 30*time.Minute, s.Duration())
	}
}

func TestResolveSlots_BlockedRangeExcludesAllOverlaps(t *testing.T) {
	// A block [09:15, 09:45) kills every candidate that touches it,
	// including the 09:00 start whose tail overlaps the block.
	got, err := availability.ResolveSlots(
		[]timeslot.Slot{slot(9, 0, 10, 0)},
		[]timeslot.Slot{slot(9, 15, 9, 45)},
		30*time.Minute,
		15*time.Minute,
	)
	require.NoError(t, err)

	assert.Empty(t, got)
}

func TestResolveSlots_BlockedRangeKeepsNonOverlapping(t *testing.T) {
	got, err := availability.ResolveSlots(
		[]timeslot.Slot{slot(9, 0, 11, 0)},
		[]timeslot.Slot{slot(9, 15, 9, 45)},
		30*time.Minute,
		15*time.Minute,
	)
	require.NoError(t, err)

	// First surviving candidate starts exactly when the block ends.
	assert.Equal(t, []time.Time{at(9, 45), at(10, 0), at(10, 15), at(10, 30)}, starts(got))
}

func TestResolveSlots_WindowShorterThanDuration(t *testing.T) {
	got, err := availability.ResolveSlots(
		[]timeslot.Slot{slot(9, 0, 9, 20)},
		nil,
		30*time.Minute,
		15*time.Minute,
	)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveSlots_MultipleWindowsOrderedAndDeduplicated(t *testing.T) {
	got, err := availability.ResolveSlots(
		[]timeslot.Slot{
			slot(13, 0, 14, 0),
			slot(9, 0, 9, 45),
			slot(9, 30, 10, 15), // overlaps the second window; 09:30 candidate appears in neither twice
		},
		nil,
		30*time.Minute,
		15*time.Minute,
	)
	require.NoError(t, err)

	want := []time.Time{
		at(9, 0), at(9, 15), at(9, 30), at(9, 45),
		at(13, 0), at(13, 15), at(13, 30),
	}
	assert.Equal(t, want, starts(got))
}

func TestResolveSlots_InvalidPreconditions(t *testing.T) {
	windows := []timeslot.Slot{slot(9, 0, 10, 0)}

	_, err := availability.ResolveSlots(windows, nil, 0, 15*time.Minute)
	assert.ErrorIs(t, err, availability.ErrNonPositiveDuration)

	_, err = availability.ResolveSlots(windows, nil, -30*time.Minute, 15*time.Minute)
	assert.ErrorIs(t, err, availability.ErrNonPositiveDuration)

	_, err = availability.ResolveSlots(windows, nil, 30*time.Minute, 0)
	assert.ErrorIs(t, err, availability.ErrNonPositiveIncrement)
}

func TestResolveSlots_Idempotent(t *testing.T) {
	windows := []timeslot.Slot{slot(9, 0, 12, 0), slot(14, 0, 17, 0)}
	blocked := []timeslot.Slot{slot(10, 0, 10, 30), slot(15, 45, 16, 15)}

	first, err := availability.ResolveSlots(windows, blocked, 45*time.Minute, 15*time.Minute)
	require.NoError(t, err)
	second, err := availability.ResolveSlots(windows, blocked, 45*time.Minute, 15*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveSlots_ContainmentProperty(t *testing.T) {
	windows := []timeslot.Slot{slot(8, 0, 12, 0), slot(13, 30, 18, 0)}
	blocked := []timeslot.Slot{slot(9, 0, 9, 30), slot(14, 0, 15, 0), slot(17, 40, 18, 0)}

	got, err := availability.ResolveSlots(windows, blocked, 20*time.Minute, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	for _, s := range got {
		contained := false
		for _, w := range windows {
			if w.Contains(s) {
				contained = true
				break
			}
		}
		assert.True(t, contained, "slot %s escapes the working windows", s)
		assert.False(t, s.OverlapsAny(blocked), "slot %s overlaps a blocked range", s)
	}
}

func TestCheckSlot(t *testing.T) {
	windows := []timeslot.Slot{slot(9, 0, 12, 0)}
	blocked := []timeslot.Slot{slot(10, 0, 10, 30)}

	assert.True(t, availability.CheckSlot(slot(9, 0, 9, 30), windows, blocked))
	assert.True(t, availability.CheckSlot(slot(10, 30, 11, 0), windows, blocked), "touching the block is fine")
	assert.False(t, availability.CheckSlot(slot(9, 45, 10, 15), windows, blocked), "overlaps the block")
	assert.False(t, availability.CheckSlot(slot(11, 45, 12, 15), windows, blocked), "spills past the window")
	assert.False(t, availability.CheckSlot(slot(8, 0, 8, 30), windows, blocked), "outside every window")
}
