package rules

import (
	"time"

	"github.com/careslot/clinic-booking/internal/timeslot"
)

// Counting periods are computed on the clinic's wall clock, then handed to
// the appointment counter as absolute ranges.

// DayRange is the clinic-local calendar day containing t.
func DayRange(t time.Time, loc *time.Location) timeslot.Slot {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return timeslot.Slot{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekRange is the Sunday-aligned 7-day span containing t.
func WeekRange(t time.Time, loc *time.Location) timeslot.Slot {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := midnight.AddDate(0, 0, -int(midnight.Weekday()))
	return timeslot.Slot{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthRange is the clinic-local calendar month containing t.
func MonthRange(t time.Time, loc *time.Location) timeslot.Slot {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return timeslot.Slot{Start: start, End: start.AddDate(0, 1, 0)}
}
