package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound          = errors.New("clinic not found")
	ErrAppointmentTypeNotFound = errors.New("appointment type not found")
	ErrStaffNotFound           = errors.New("staff member not found")
)

// Repository contains all DB interactions needed for clinic lookup data.
type Repository interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error)

	GetAppointmentType(ctx context.Context, clinicID, id uuid.UUID) (*AppointmentType, error)
	ListActiveAppointmentTypes(ctx context.Context, clinicID uuid.UUID) ([]AppointmentType, error)

	GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error)
	ListActiveStaff(ctx context.Context, clinicID uuid.UUID) ([]Staff, error)
}
