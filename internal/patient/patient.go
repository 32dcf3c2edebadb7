package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPatientNotFound = errors.New("patient not found")

// Patient is a clinic-scoped patient record. A booking attempt by someone
// with no record in the clinic counts as a new patient for rule purposes.
type Patient struct {
	ID               uuid.UUID
	ClinicID         uuid.UUID
	FirstName        string
	LastName         string
	Email            *string
	Phone            *string
	SMSNotifications bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Directory is the patient-lookup collaborator consumed by the rule
// evaluator and by notification addressing.
type Directory interface {
	Exists(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, clinicID, patientID uuid.UUID) (*Patient, error)
}
