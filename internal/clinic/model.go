package clinic

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clinic is the tenant. Every other entity is scoped to exactly one clinic
// and no operation crosses clinic boundaries.
type Clinic struct {
	ID        uuid.UUID
	Name      string
	Timezone  string // IANA name, e.g. "America/New_York"
	Email     *string
	Phone     *string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the clinic's IANA time zone. All clinic-local day
// boundary math goes through this.
func (c *Clinic) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AppointmentType defines a bookable service. Duration drives the slot
// length in the availability resolver.
type AppointmentType struct {
	ID               uuid.UUID
	ClinicID         uuid.UUID
	Name             string
	DurationMinutes  int
	Price            decimal.Decimal
	Color            string
	Active           bool
	RequiresApproval bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t *AppointmentType) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// Staff is a bookable member of a clinic.
type Staff struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Role      string
	Email     *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
