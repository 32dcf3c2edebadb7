package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/timeslot"
)

// DefaultHorizonDays is how far ahead daily rows are materialized.
const DefaultHorizonDays = 30

// Generator materializes DailyAvailability rows from active recurring
// patterns. Dates that already have a daily row are left alone so staff
// overrides always win over the template.
type Generator struct {
	repo    Repository
	clinics clinic.Repository
	log     zerolog.Logger
}

func NewGenerator(repo Repository, clinics clinic.Repository, log zerolog.Logger) *Generator {
	return &Generator{repo: repo, clinics: clinics, log: log}
}

// Run materializes the horizon for every active pattern in the system.
// Intended to be called periodically by the availability worker. A failure
// for one staff member is logged and does not stop the rest of the run.
func (g *Generator) Run(ctx context.Context, from time.Time, horizonDays int) error {
	patterns, err := g.repo.ListAllActiveRecurring(ctx)
	if err != nil {
		return fmt.Errorf("list recurring patterns: %w", err)
	}

	type staffKey struct {
		clinicID uuid.UUID
		staffID  uuid.UUID
	}

	byStaff := make(map[staffKey][]RecurringAvailability)
	for _, p := range patterns {
		k := staffKey{p.ClinicID, p.StaffID}
		byStaff[k] = append(byStaff[k], p)
	}

	var failed int
	for k, staffPatterns := range byStaff {
		if err := g.GenerateForStaff(ctx, k.clinicID, k.staffID, staffPatterns, from, horizonDays); err != nil {
			failed++
			g.log.Error().Err(err).
				Str("clinic_id", k.clinicID.String()).
				Str("staff_id", k.staffID.String()).
				Msg("availability generation failed for staff member")
		}
	}

	if failed > 0 {
		return fmt.Errorf("availability generation failed for %d staff member(s)", failed)
	}
	return nil
}

// GenerateForStaff materializes up to horizonDays daily rows for one staff
// member from the given patterns, starting at the clinic-local date of from.
func (g *Generator) GenerateForStaff(ctx context.Context, clinicID, staffID uuid.UUID, patterns []RecurringAvailability, from time.Time, horizonDays int) error {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	c, err := g.clinics.GetClinic(ctx, clinicID)
	if err != nil {
		return fmt.Errorf("load clinic: %w", err)
	}
	loc, err := c.Location()
	if err != nil {
		return fmt.Errorf("clinic time zone: %w", err)
	}

	byWeekday := make(map[time.Weekday]RecurringAvailability)
	for _, p := range patterns {
		if !p.Active || p.StaffID != staffID || len(p.Windows) == 0 {
			continue
		}
		byWeekday[p.Weekday] = p
	}
	if len(byWeekday) == 0 {
		return nil
	}

	day := from.In(loc)
	for i := 0; i < horizonDays; i++ {
		current := day.AddDate(0, 0, i)
		pattern, ok := byWeekday[current.Weekday()]
		if !ok {
			continue
		}

		date := current.Format(timeslot.DateLayout)

		_, err := g.repo.GetDaily(ctx, clinicID, staffID, date)
		switch {
		case err == nil:
			continue // staff override or earlier run, keep it
		case errors.Is(err, ErrNoAvailability):
			// fall through and materialize
		default:
			return fmt.Errorf("check daily availability for %s: %w", date, err)
		}

		d := &DailyAvailability{
			ClinicID: clinicID,
			StaffID:  staffID,
			Date:     date,
			Windows:  pattern.Windows,
		}
		if err := g.repo.SetDaily(ctx, d); err != nil {
			return fmt.Errorf("materialize %s: %w", date, err)
		}
	}

	return nil
}
