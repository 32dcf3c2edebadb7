package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Windows travel as a jsonb column.

func encodeWindows(windows []Window) ([]byte, error) {
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	return json.Marshal(windows)
}

func decodeWindows(raw []byte) ([]Window, error) {
	var windows []Window
	if err := json.Unmarshal(raw, &windows); err != nil {
		return nil, fmt.Errorf("decode windows: %w", err)
	}
	return windows, nil
}

func scanDaily(row pgx.Row) (*DailyAvailability, error) {
	var d DailyAvailability
	var raw []byte

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.StaffID,
		&d.Date,
		&raw,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoAvailability
		}
		return nil, err
	}

	d.Windows, err = decodeWindows(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanRecurring(row pgx.Row) (*RecurringAvailability, error) {
	var p RecurringAvailability
	var weekday int
	var raw []byte

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.StaffID,
		&weekday,
		&raw,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}

	p.Weekday = time.Weekday(weekday)
	p.Windows, err = decodeWindows(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Interface methods

func (r *PgRepository) GetDaily(ctx context.Context, clinicID, staffID uuid.UUID, date string) (*DailyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, staff_id, date, windows, created_at, updated_at
		FROM daily_availability
		WHERE clinic_id = $1 AND staff_id = $2 AND date = $3
	`, clinicID, staffID, date)
	return scanDaily(row)
}

func (r *PgRepository) SetDaily(ctx context.Context, d *DailyAvailability) error {
	raw, err := encodeWindows(d.Windows)
	if err != nil {
		return err
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO daily_availability (id, clinic_id, staff_id, date, windows, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (clinic_id, staff_id, date)
		DO UPDATE SET windows = EXCLUDED.windows, updated_at = now()
	`, d.ID, d.ClinicID, d.StaffID, d.Date, raw)
	if err != nil {
		return fmt.Errorf("set daily availability: %w", err)
	}
	return nil
}

func (r *PgRepository) ListDailyRange(ctx context.Context, clinicID, staffID uuid.UUID, fromDate, toDate string) ([]DailyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, staff_id, date, windows, created_at, updated_at
		FROM daily_availability
		WHERE clinic_id = $1 AND staff_id = $2 AND date >= $3 AND date <= $4
		ORDER BY date
	`, clinicID, staffID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyAvailability
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DeleteDaily(ctx context.Context, clinicID, staffID uuid.UUID, date string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM daily_availability
		WHERE clinic_id = $1 AND staff_id = $2 AND date = $3
	`, clinicID, staffID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoAvailability
	}
	return nil
}

func (r *PgRepository) ListRecurring(ctx context.Context, clinicID, staffID uuid.UUID) ([]RecurringAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, staff_id, weekday, windows, active, created_at, updated_at
		FROM recurring_availability
		WHERE clinic_id = $1 AND staff_id = $2
		ORDER BY weekday
	`, clinicID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

func (r *PgRepository) ListAllActiveRecurring(ctx context.Context) ([]RecurringAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, staff_id, weekday, windows, active, created_at, updated_at
		FROM recurring_availability
		WHERE active = true
		ORDER BY clinic_id, staff_id, weekday
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurring(rows)
}

func (r *PgRepository) CreateRecurring(ctx context.Context, p *RecurringAvailability) error {
	raw, err := encodeWindows(p.Windows)
	if err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO recurring_availability (id, clinic_id, staff_id, weekday, windows, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, p.ID, p.ClinicID, p.StaffID, int(p.Weekday), raw, p.Active)
	if err != nil {
		// One pattern per (clinic, staff, weekday); the table enforces it.
		if isUniqueViolation(err) {
			return ErrDuplicatePattern
		}
		return fmt.Errorf("create recurring availability: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateRecurring(ctx context.Context, p *RecurringAvailability) error {
	raw, err := encodeWindows(p.Windows)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_availability
		SET weekday = $3, windows = $4, active = $5, updated_at = now()
		WHERE clinic_id = $1 AND id = $2
	`, p.ClinicID, p.ID, int(p.Weekday), raw, p.Active)
	if err != nil {
		// Moving a pattern onto a weekday that already has one.
		if isUniqueViolation(err) {
			return ErrDuplicatePattern
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatternNotFound
	}
	return nil
}

func (r *PgRepository) DeleteRecurring(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM recurring_availability
		WHERE clinic_id = $1 AND id = $2
	`, clinicID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatternNotFound
	}
	return nil
}

func collectRecurring(rows pgx.Rows) ([]RecurringAvailability, error) {
	var result []RecurringAvailability
	for rows.Next() {
		p, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
