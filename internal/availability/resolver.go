package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/careslot/clinic-booking/internal/timeslot"
)

// DefaultIncrement is the step between candidate start times.
const DefaultIncrement = 15 * time.Minute

var (
	ErrNonPositiveDuration  = errors.New("slot duration must be positive")
	ErrNonPositiveIncrement = errors.New("slot increment must be positive")
)

// ResolveSlots computes the bookable slots of the given duration within the
// working windows, excluding every candidate that overlaps a blocked range.
// Within each window, candidates start at the window start and advance by
// increment while the full duration still fits. The result is ordered by
// start time and contains no duplicates even when windows overlap.
//
// Pure function: it knows nothing about staff or dates; the caller supplies
// windows and blocked ranges already filtered to one staff member and day.
func ResolveSlots(windows, blocked []timeslot.Slot, duration, increment time.Duration) ([]timeslot.Slot, error) {
	if duration <= 0 {
		return nil, ErrNonPositiveDuration
	}
	if increment <= 0 {
		return nil, ErrNonPositiveIncrement
	}

	seen := make(map[int64]struct{})
	var result []timeslot.Slot

	for _, window := range windows {
		for current := window.Start; !current.Add(duration).After(window.End); current = current.Add(increment) {
			candidate := timeslot.Slot{Start: current, End: current.Add(duration)}
			if candidate.OverlapsAny(blocked) {
				continue
			}

			key := candidate.Start.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, candidate)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})

	return result, nil
}

// CheckSlot is the single-slot specialization of ResolveSlots used at
// booking time: the candidate must lie within some working window and must
// not overlap any blocked range.
func CheckSlot(candidate timeslot.Slot, windows, blocked []timeslot.Slot) bool {
	inWindow := false
	for _, w := range windows {
		if w.Contains(candidate) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return false
	}
	return !candidate.OverlapsAny(blocked)
}
