package rules

import (
	"time"

	"github.com/google/uuid"
)

// Type is an informational label derived from which optional fields a rule
// sets. Evaluation never branches on it; it exists for dashboards and
// filtering only.
type Type string

const (
	TypeTime            Type = "time"
	TypePatient         Type = "patient"
	TypeStaff           Type = "staff"
	TypeAppointmentType Type = "appointment_type"
	TypeCustom          Type = "custom"
)

// Rule is a clinic-configured booking constraint. All constraint fields are
// optional; a rule with no scoping fields applies to every booking attempt
// in its clinic. One struct covers every rule shape on purpose: evaluation
// inspects the optional fields directly.
type Rule struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Description string
	Active      bool

	// Advance-notice constraints, in minutes relative to evaluation time.
	MinAdvanceMinutes *int
	MaxAdvanceMinutes *int

	// Applicability scopes. Empty means the rule applies to everyone.
	AppointmentTypeIDs []uuid.UUID
	StaffIDs           []uuid.UUID

	// False blocks patients with no record in the clinic.
	NewPatientsAllowed *bool

	// Per-patient caps on non-cancelled appointments in the period
	// containing the requested start time.
	MaxPerDay   *int
	MaxPerWeek  *int
	MaxPerMonth *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DerivedType classifies the rule by its first set field group.
func (r *Rule) DerivedType() Type {
	switch {
	case r.MinAdvanceMinutes != nil || r.MaxAdvanceMinutes != nil:
		return TypeTime
	case r.NewPatientsAllowed != nil || r.MaxPerDay != nil || r.MaxPerWeek != nil || r.MaxPerMonth != nil:
		return TypePatient
	case len(r.StaffIDs) > 0:
		return TypeStaff
	case len(r.AppointmentTypeIDs) > 0:
		return TypeAppointmentType
	default:
		return TypeCustom
	}
}

// AppliesTo evaluates the scoping gates: a non-empty staff or
// appointment-type list restricts the rule to those members.
func (r *Rule) AppliesTo(staffID, appointmentTypeID uuid.UUID) bool {
	if len(r.StaffIDs) > 0 && !containsID(r.StaffIDs, staffID) {
		return false
	}
	if len(r.AppointmentTypeIDs) > 0 && !containsID(r.AppointmentTypeIDs, appointmentTypeID) {
		return false
	}
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
