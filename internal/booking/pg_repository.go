package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

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

const appointmentColumns = `
	id, clinic_id, patient_id, staff_id, appointment_type_id,
	start_time, end_time, status,
	patient_notes, staff_notes,
	payment_status, payment_amount,
	reminder_sent,
	cancelled_at, cancelled_by, cancel_reason,
	check_in_time, check_out_time,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ClinicID, &a.PatientID, &a.StaffID, &a.AppointmentTypeID,
		&a.StartTime, &a.EndTime, &a.Status,
		&a.PatientNotes, &a.StaffNotes,
		&a.PaymentStatus, &a.PaymentAmount,
		&a.ReminderSent,
		&a.CancelledAt, &a.CancelledBy, &a.CancelReason,
		&a.CheckInTime, &a.CheckOutTime,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)

	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE clinic_id = $1`
	args := []any{clinicID}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += " AND patient_id = $" + strconv.Itoa(len(args))
	}
	if f.StaffID != nil {
		args = append(args, *f.StaffID)
		query += " AND staff_id = $" + strconv.Itoa(len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += " AND start_time >= $" + strconv.Itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += " AND start_time < $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY start_time ASC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListBlockingInRange(ctx context.Context, clinicID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1
		  AND staff_id = $2
		  AND status IN ('scheduled', 'confirmed')
		  AND start_time < $4
		  AND end_time > $3
		ORDER BY start_time ASC
	`, clinicID, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocking appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) CountActiveInRange(ctx context.Context, clinicID, patientID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE clinic_id = $1
		  AND patient_id = $2
		  AND status NOT IN ('cancelled', 'cancelled_by_patient')
		  AND start_time >= $3
		  AND start_time < $4
	`, clinicID, patientID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return count, nil
}

// CreateConfirmed inserts the appointment after re-checking inside one
// transaction that no blocking appointment overlaps its range. The
// SELECT ... FOR UPDATE serializes against concurrent inserts touching the
// same rows; together with the staff-day lock held by the service this
// closes the read-then-write race.
func (r *PgRepository) CreateConfirmed(ctx context.Context, a *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var conflictID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE clinic_id = $1
		  AND staff_id = $2
		  AND status IN ('scheduled', 'confirmed')
		  AND start_time < $4
		  AND end_time > $3
		LIMIT 1
		FOR UPDATE
	`, a.ClinicID, a.StaffID, a.StartTime, a.EndTime).Scan(&conflictID)
	if err == nil {
		return ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check slot conflict: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, clinic_id, patient_id, staff_id, appointment_type_id,
			start_time, end_time, status,
			patient_notes, payment_status, payment_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, a.ID, a.ClinicID, a.PatientID, a.StaffID, a.AppointmentTypeID,
		a.StartTime, a.EndTime, a.Status,
		a.PatientNotes, a.PaymentStatus, a.PaymentAmount,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from []Status, to Status, change StatusChange) (*Appointment, error) {
	fromStatuses := make([]string, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}

	var cancelledAt *time.Time
	if to == StatusCancelled || to == StatusCancelledByPatient {
		now := time.Now()
		cancelledAt = &now
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    cancelled_at = COALESCE($4, cancelled_at),
		    cancelled_by = COALESCE($5, cancelled_by),
		    cancel_reason = COALESCE($6, cancel_reason),
		    check_out_time = COALESCE($7, check_out_time),
		    updated_at = now()
		WHERE clinic_id = $1 AND id = $2 AND status = ANY($8)
		RETURNING `+appointmentColumns+`
	`, clinicID, id, to, cancelledAt, change.CancelledBy, change.CancelReason, change.CheckOutAt, fromStatuses)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Distinguish a missing row from a row in the wrong status.
			if _, getErr := r.GetByID(ctx, clinicID, id); getErr == nil {
				return nil, ErrInvalidStatusTransition
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return a, nil
}

func (r *PgRepository) ListReminderDue(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND reminder_sent = FALSE
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE, updated_at = now()
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
