package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const ruleColumns = `
	id, clinic_id, name, description, active,
	min_advance_minutes, max_advance_minutes,
	appointment_type_ids, staff_ids,
	new_patients_allowed,
	max_per_day, max_per_week, max_per_month,
	created_at, updated_at`

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	var typeIDs, staffIDs []uuid.UUID

	err := row.Scan(
		&r.ID,
		&r.ClinicID,
		&r.Name,
		&r.Description,
		&r.Active,
		&r.MinAdvanceMinutes,
		&r.MaxAdvanceMinutes,
		&typeIDs,
		&staffIDs,
		&r.NewPatientsAllowed,
		&r.MaxPerDay,
		&r.MaxPerWeek,
		&r.MaxPerMonth,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.AppointmentTypeIDs = typeIDs
	r.StaffIDs = staffIDs
	return &r, nil
}

func (p *PgRepository) list(ctx context.Context, clinicID uuid.UUID, activeOnly bool) ([]Rule, error) {
	query := `
		SELECT` + ruleColumns + `
		FROM booking_rules
		WHERE clinic_id = $1
		ORDER BY created_at, id
	`
	if activeOnly {
		query = `
		SELECT` + ruleColumns + `
		FROM booking_rules
		WHERE clinic_id = $1 AND active = true
		ORDER BY created_at, id
	`
	}

	rows, err := p.pool.Query(ctx, query, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *PgRepository) List(ctx context.Context, clinicID uuid.UUID) ([]Rule, error) {
	return p.list(ctx, clinicID, false)
}

func (p *PgRepository) ListActive(ctx context.Context, clinicID uuid.UUID) ([]Rule, error) {
	return p.list(ctx, clinicID, true)
}

func (p *PgRepository) Get(ctx context.Context, clinicID, id uuid.UUID) (*Rule, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT`+ruleColumns+`
		FROM booking_rules
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	return scanRule(row)
}

func (p *PgRepository) Create(ctx context.Context, r *Rule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO booking_rules (
			id, clinic_id, name, description, active,
			min_advance_minutes, max_advance_minutes,
			appointment_type_ids, staff_ids,
			new_patients_allowed,
			max_per_day, max_per_week, max_per_month,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
	`,
		r.ID, r.ClinicID, r.Name, r.Description, r.Active,
		r.MinAdvanceMinutes, r.MaxAdvanceMinutes,
		r.AppointmentTypeIDs, r.StaffIDs,
		r.NewPatientsAllowed,
		r.MaxPerDay, r.MaxPerWeek, r.MaxPerMonth,
	)
	if err != nil {
		return fmt.Errorf("create booking rule: %w", err)
	}
	return nil
}

func (p *PgRepository) Update(ctx context.Context, r *Rule) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE booking_rules
		SET name = $3,
		    description = $4,
		    active = $5,
		    min_advance_minutes = $6,
		    max_advance_minutes = $7,
		    appointment_type_ids = $8,
		    staff_ids = $9,
		    new_patients_allowed = $10,
		    max_per_day = $11,
		    max_per_week = $12,
		    max_per_month = $13,
		    updated_at = now()
		WHERE clinic_id = $1 AND id = $2
	`,
		r.ClinicID, r.ID, r.Name, r.Description, r.Active,
		r.MinAdvanceMinutes, r.MaxAdvanceMinutes,
		r.AppointmentTypeIDs, r.StaffIDs,
		r.NewPatientsAllowed,
		r.MaxPerDay, r.MaxPerWeek, r.MaxPerMonth,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (p *PgRepository) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM booking_rules
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}
