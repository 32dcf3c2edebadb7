package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/clinic-booking/internal/timeslot"
)

// PatientDirectory answers whether a patient already has a record in the
// clinic. A missing record makes the booking a new-patient attempt.
type PatientDirectory interface {
	Exists(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error)
}

// AppointmentCounter counts a patient's non-cancelled appointments whose
// start time falls within [from, to).
type AppointmentCounter interface {
	CountActiveInRange(ctx context.Context, clinicID, patientID uuid.UUID, from, to time.Time) (int, error)
}

// Candidate is one booking attempt as seen by the evaluator.
type Candidate struct {
	ClinicID          uuid.UUID
	PatientID         uuid.UUID
	StaffID           uuid.UUID
	AppointmentTypeID uuid.UUID
	StartTime         time.Time
}

// Violation is a user-facing rule failure. Message is shown to the patient
// verbatim.
type Violation struct {
	RuleID   uuid.UUID
	RuleName string
	Message  string
}

// Evaluator runs a clinic's active rules against a candidate booking. It
// performs no writes and may be invoked any number of times for the same
// attempt: once when slots are displayed and again, authoritatively, right
// before commit.
type Evaluator struct {
	patients PatientDirectory
	counter  AppointmentCounter
	now      func() time.Time
}

func NewEvaluator(patients PatientDirectory, counter AppointmentCounter) *Evaluator {
	return &Evaluator{
		patients: patients,
		counter:  counter,
		now:      time.Now,
	}
}

// WithClock overrides the evaluation clock. Tests only.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate walks the rules in the order given and returns the first
// violation, or nil when the candidate passes. Inactive rules and rules
// whose scoping gates exclude the candidate are skipped entirely. loc is
// the clinic's time zone, used for cap-period boundaries.
func (e *Evaluator) Evaluate(ctx context.Context, clinicRules []Rule, c Candidate, loc *time.Location) (*Violation, error) {
	if len(clinicRules) == 0 {
		return nil, nil
	}

	now := e.now()

	for i := range clinicRules {
		rule := &clinicRules[i]
		if !rule.Active {
			continue
		}
		if !rule.AppliesTo(c.StaffID, c.AppointmentTypeID) {
			continue
		}

		if rule.MinAdvanceMinutes != nil {
			earliest := now.Add(time.Duration(*rule.MinAdvanceMinutes) * time.Minute)
			if c.StartTime.Before(earliest) {
				return violation(rule, fmt.Sprintf("Appointments must be booked at least %d minutes in advance.", *rule.MinAdvanceMinutes)), nil
			}
		}

		if rule.MaxAdvanceMinutes != nil {
			latest := now.Add(time.Duration(*rule.MaxAdvanceMinutes) * time.Minute)
			if c.StartTime.After(latest) {
				return violation(rule, fmt.Sprintf("Appointments cannot be booked more than %d minutes in advance.", *rule.MaxAdvanceMinutes)), nil
			}
		}

		if rule.NewPatientsAllowed != nil && !*rule.NewPatientsAllowed {
			exists, err := e.patients.Exists(ctx, c.ClinicID, c.PatientID)
			if err != nil {
				return nil, fmt.Errorf("patient lookup: %w", err)
			}
			if !exists {
				return violation(rule, "New patients cannot book this appointment type online. Please call the clinic."), nil
			}
		}

		if rule.MaxPerDay != nil {
			v, err := e.checkCap(ctx, rule, c, DayRange(c.StartTime, loc), *rule.MaxPerDay, "day")
			if err != nil || v != nil {
				return v, err
			}
		}

		if rule.MaxPerWeek != nil {
			v, err := e.checkCap(ctx, rule, c, WeekRange(c.StartTime, loc), *rule.MaxPerWeek, "week")
			if err != nil || v != nil {
				return v, err
			}
		}

		if rule.MaxPerMonth != nil {
			v, err := e.checkCap(ctx, rule, c, MonthRange(c.StartTime, loc), *rule.MaxPerMonth, "month")
			if err != nil || v != nil {
				return v, err
			}
		}
	}

	return nil, nil
}

func (e *Evaluator) checkCap(ctx context.Context, rule *Rule, c Candidate, period timeslot.Slot, limit int, periodName string) (*Violation, error) {
	count, err := e.counter.CountActiveInRange(ctx, c.ClinicID, c.PatientID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("count appointments per %s: %w", periodName, err)
	}
	if count >= limit {
		return violation(rule, fmt.Sprintf("You can only book %d appointment(s) per %s.", limit, periodName)), nil
	}
	return nil, nil
}

func violation(rule *Rule, message string) *Violation {
	return &Violation{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Message:  message,
	}
}
