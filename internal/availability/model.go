package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/clinic-booking/internal/timeslot"
)

var ErrInvalidWindow = errors.New("window start must be before end and within the day")

// Window is a working interval expressed as minutes from clinic-local
// midnight. Windows are stored this way so a pattern survives DST shifts;
// they become absolute Slots only when anchored to a concrete day.
type Window struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

const minutesPerDay = 24 * 60

func (w Window) Validate() error {
	if w.StartMinute < 0 || w.EndMinute > minutesPerDay || w.StartMinute >= w.EndMinute {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, w.StartMinute, w.EndMinute)
	}
	return nil
}

// Slot anchors the window to a day. midnight must be clinic-local midnight
// of the target date.
func (w Window) Slot(midnight time.Time) timeslot.Slot {
	return timeslot.Slot{
		Start: midnight.Add(time.Duration(w.StartMinute) * time.Minute),
		End:   midnight.Add(time.Duration(w.EndMinute) * time.Minute),
	}
}

// DailyAvailability is the bookable time for one staff member on one
// clinic-local calendar date. At most one row exists per (staff, date);
// staff edits override anything derived from a recurring pattern.
type DailyAvailability struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	StaffID   uuid.UUID
	Date      string // YYYY-MM-DD, clinic-local
	Windows   []Window
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slots converts the day's windows to absolute intervals.
func (d *DailyAvailability) Slots(loc *time.Location) ([]timeslot.Slot, error) {
	day, err := time.ParseInLocation(timeslot.DateLayout, d.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("parse availability date %q: %w", d.Date, err)
	}

	slots := make([]timeslot.Slot, 0, len(d.Windows))
	for _, w := range d.Windows {
		slots = append(slots, w.Slot(day))
	}
	return slots, nil
}

// RecurringAvailability is a weekly template from which DailyAvailability
// rows are materialized for a forward-looking horizon. It does not itself
// represent bookable time.
type RecurringAvailability struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	StaffID   uuid.UUID
	Weekday   time.Weekday // 0 = Sunday
	Windows   []Window
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
