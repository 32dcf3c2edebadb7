package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrSlotTaken               = errors.New("slot already taken by another appointment")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error)

	// ListBlockingInRange returns appointments in a blocking status whose
	// time range intersects [from, to), for one staff member.
	ListBlockingInRange(ctx context.Context, clinicID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CountActiveInRange counts a patient's non-cancelled appointments
	// starting within [from, to). Feeds the rule evaluator's caps.
	CountActiveInRange(ctx context.Context, clinicID, patientID uuid.UUID, from, to time.Time) (int, error)

	// CreateConfirmed persists the appointment and atomically re-checks
	// that no blocking appointment overlaps its range; returns ErrSlotTaken
	// if one does. This is the commit boundary for a booking attempt.
	CreateConfirmed(ctx context.Context, a *Appointment) error

	// UpdateStatus is a compare-and-swap transition; it fails with
	// ErrInvalidStatusTransition when the appointment is not in any of the
	// expected from-statuses.
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from []Status, to Status, change StatusChange) (*Appointment, error)

	// Reminder dispatch, consumed by the reminder worker.
	ListReminderDue(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, clinicID, id uuid.UUID) error
}

// StatusChange carries the side fields written along a status transition.
type StatusChange struct {
	CancelledBy  *string
	CancelReason *string
	CheckOutAt   *time.Time
}
