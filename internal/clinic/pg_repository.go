package clinic

import (
	"context"
	"errors"

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

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Timezone,
		&c.Email,
		&c.Phone,
		&c.Address,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanAppointmentType(row pgx.Row) (*AppointmentType, error) {
	var t AppointmentType

	err := row.Scan(
		&t.ID,
		&t.ClinicID,
		&t.Name,
		&t.DurationMinutes,
		&t.Price,
		&t.Color,
		&t.Active,
		&t.RequiresApproval,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentTypeNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff

	err := row.Scan(
		&s.ID,
		&s.ClinicID,
		&s.Name,
		&s.Role,
		&s.Email,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}

	return &s, nil
}

// Interface methods

func (r *PgRepository) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, email, phone, address, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) GetAppointmentType(ctx context.Context, clinicID, id uuid.UUID) (*AppointmentType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, duration_minutes, price, color, active, requires_approval, created_at, updated_at
		FROM appointment_types
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	return scanAppointmentType(row)
}

func (r *PgRepository) ListActiveAppointmentTypes(ctx context.Context, clinicID uuid.UUID) ([]AppointmentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, duration_minutes, price, color, active, requires_approval, created_at, updated_at
		FROM appointment_types
		WHERE clinic_id = $1 AND active = true
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentType
	for rows.Next() {
		t, err := scanAppointmentType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetStaff(ctx context.Context, clinicID, id uuid.UUID) (*Staff, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, role, email, active, created_at, updated_at
		FROM staff
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	return scanStaff(row)
}

func (r *PgRepository) ListActiveStaff(ctx context.Context, clinicID uuid.UUID) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, role, email, active, created_at, updated_at
		FROM staff
		WHERE clinic_id = $1 AND active = true
		ORDER BY name
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
