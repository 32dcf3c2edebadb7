package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNoAvailability   = errors.New("no availability for this staff member and date")
	ErrPatternNotFound  = errors.New("recurring availability pattern not found")
	ErrDuplicatePattern = errors.New("recurring availability pattern already exists for this weekday")
)

// Repository contains all DB interactions for daily and recurring
// availability.
type Repository interface {
	GetDaily(ctx context.Context, clinicID, staffID uuid.UUID, date string) (*DailyAvailability, error)
	SetDaily(ctx context.Context, d *DailyAvailability) error
	ListDailyRange(ctx context.Context, clinicID, staffID uuid.UUID, fromDate, toDate string) ([]DailyAvailability, error)
	DeleteDaily(ctx context.Context, clinicID, staffID uuid.UUID, date string) error

	ListRecurring(ctx context.Context, clinicID, staffID uuid.UUID) ([]RecurringAvailability, error)
	ListAllActiveRecurring(ctx context.Context) ([]RecurringAvailability, error)
	CreateRecurring(ctx context.Context, p *RecurringAvailability) error
	UpdateRecurring(ctx context.Context, p *RecurringAvailability) error
	DeleteRecurring(ctx context.Context, clinicID, id uuid.UUID) error
}
