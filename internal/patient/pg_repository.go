package patient

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

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.SMSNotifications,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) Exists(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patients WHERE clinic_id = $1 AND id = $2
		)
	`, clinicID, patientID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) GetByID(ctx context.Context, clinicID, patientID uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, first_name, last_name, email, phone, sms_notifications, created_at, updated_at
		FROM patients
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, patientID)
	return scanPatient(row)
}
