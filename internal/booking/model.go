package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled          Status = "scheduled"
	StatusConfirmed          Status = "confirmed"
	StatusCancelled          Status = "cancelled"
	StatusCompleted          Status = "completed"
	StatusNoShow             Status = "no_show"
	StatusCancelledByPatient Status = "cancelled_by_patient"
)

// Blocks reports whether an appointment in this status consumes its time
// range. Cancelling an appointment frees the range precisely because the
// resolver only sees blocking statuses.
func (s Status) Blocks() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Cancelled covers both staff- and patient-initiated cancellation. These
// are the statuses excluded from per-patient cap counting.
func (s Status) Cancelled() bool {
	return s == StatusCancelled || s == StatusCancelledByPatient
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentWaived   PaymentStatus = "waived"
)

// Appointment is the reserved unit. EndTime is always derived from the
// appointment type's duration at booking time, never supplied by clients.
type Appointment struct {
	ID                uuid.UUID
	ClinicID          uuid.UUID
	PatientID         uuid.UUID
	StaffID           uuid.UUID
	AppointmentTypeID uuid.UUID

	StartTime time.Time
	EndTime   time.Time
	Status    Status

	PatientNotes string
	StaffNotes   string

	PaymentStatus PaymentStatus
	PaymentAmount decimal.Decimal

	ReminderSent bool

	CancelledAt  *time.Time
	CancelledBy  *string
	CancelReason *string
	CheckInTime  *time.Time
	CheckOutTime *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request is one booking attempt from either the public flow or the
// dashboard.
type Request struct {
	ClinicID          uuid.UUID
	PatientID         uuid.UUID
	StaffID           uuid.UUID
	AppointmentTypeID uuid.UUID
	StartTime         time.Time
	PatientNotes      string
	SyncToCalendar    bool
}

// Frequency of a recurring booking series.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	return f == Weekly || f == Biweekly || f == Monthly
}

// Next advances a start time by one occurrence. Monthly follows the
// calendar, not a fixed number of days.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t
	}
}

// Filter narrows appointment listings.
type Filter struct {
	PatientID *uuid.UUID
	StaffID   *uuid.UUID
	Status    *Status
	From      *time.Time
	To        *time.Time
	Limit     int
}
