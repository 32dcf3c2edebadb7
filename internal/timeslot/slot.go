package timeslot

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSlot = errors.New("slot start must be before end")

// Slot is a half-open interval [Start, End) on the absolute time axis.
// All booking math happens on Slots; conversion from clinic-local wall
// clock time is done once, at the edge, via DayBounds.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func New(start, end time.Time) (Slot, error) {
	s := Slot{Start: start, End: end}
	if err := s.Validate(); err != nil {
		return Slot{}, err
	}
	return s, nil
}

func (s Slot) Validate() error {
	if !s.Start.Before(s.End) {
		return ErrInvalidSlot
	}
	return nil
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints (s.End == other.Start) do not overlap.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Contains reports whether other lies entirely within s.
func (s Slot) Contains(other Slot) bool {
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Slot) Equal(other Slot) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

func (s Slot) String() string {
	return fmt.Sprintf("[%s, %s)", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
}

// OverlapsAny reports whether s intersects any slot in blocked.
func (s Slot) OverlapsAny(blocked []Slot) bool {
	for _, b := range blocked {
		if s.Overlaps(b) {
			return true
		}
	}
	return false
}

// DateLayout is the wire format for clinic-local calendar dates.
const DateLayout = "2006-01-02"

// DayBounds converts a clinic-local calendar date to the absolute
// [midnight, next midnight) range in the given location. DST days are
// shorter or longer than 24h; going through the calendar keeps the
// boundary correct.
func DayBounds(date string, loc *time.Location) (Slot, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Slot{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return Slot{Start: day, End: day.AddDate(0, 0, 1)}, nil
}
