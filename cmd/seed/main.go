package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	clinicID, staffIDs, err := seedClinic(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed clinic: %v", err)
	}
	if err := seedAppointmentTypes(seedCtx, pool, clinicID); err != nil {
		log.Fatalf("seed appointment types: %v", err)
	}
	if err := seedPatients(seedCtx, pool, clinicID, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedRules(seedCtx, pool, clinicID); err != nil {
		log.Fatalf("seed rules: %v", err)
	}
	if err := seedAvailability(seedCtx, pool, clinicID, staffIDs); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, []uuid.UUID, error) {
	clinicID := uuid.New()

	_, err := pool.Exec(ctx, `
		INSERT INTO clinics (id, name, timezone, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, clinicID, gofakeit.Company()+" Clinic", "America/New_York",
		gofakeit.Email(), gofakeit.Phone(), gofakeit.Address().Address)
	if err != nil {
		return uuid.Nil, nil, err
	}

	roles := []string{"Physician", "Nurse Practitioner", "Physiotherapist", "Dietitian"}

	staffIDs := make([]uuid.UUID, 0, 8)
	for i := 0; i < 8; i++ {
		id := uuid.New()
		_, err := pool.Exec(ctx, `
			INSERT INTO staff (id, clinic_id, name, role, email, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
		`, id, clinicID, "Dr. "+gofakeit.LastName(), roles[gofakeit.Number(0, len(roles)-1)], gofakeit.Email())
		if err != nil {
			return uuid.Nil, nil, err
		}
		staffIDs = append(staffIDs, id)
	}

	log.Printf("clinic seeded: %s with %d staff", clinicID, len(staffIDs))
	return clinicID, staffIDs, nil
}

func seedAppointmentTypes(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID) error {
	types := []struct {
		name     string
		minutes  int
		price    decimal.Decimal
		color    string
		approval bool
	}{
		{"Initial Consultation", 45, decimal.NewFromInt(120), "#2563eb", false},
		{"Follow-up Visit", 30, decimal.NewFromInt(75), "#16a34a", false},
		{"Annual Physical", 60, decimal.NewFromInt(180), "#9333ea", false},
		{"Telehealth Check-in", 15, decimal.NewFromInt(40), "#f59e0b", false},
		{"Specialist Referral Review", 30, decimal.NewFromInt(95), "#dc2626", true},
	}

	for _, t := range types {
		_, err := pool.Exec(ctx, `
			INSERT INTO appointment_types
				(id, clinic_id, name, duration_minutes, price, color, active, requires_approval, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, now(), now())
		`, uuid.New(), clinicID, t.name, t.minutes, t.price, t.color, t.approval)
		if err != nil {
			return err
		}
	}

	log.Printf("appointment types seeded: %d", len(types))
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients
					(id, clinic_id, first_name, last_name, email, phone, sms_notifications, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			`, uuid.New(), clinicID, gofakeit.FirstName(), gofakeit.LastName(),
				gofakeit.Email(), gofakeit.Phone(), gofakeit.Bool())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

func seedRules(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID) error {
	minAdvance := 60
	maxAdvance := 60 * 24 * 90
	maxPerDay := 2

	ruleRows := []struct {
		name        string
		description string
		min, max    *int
		perDay      *int
	}{
		{"advance notice", "bookings need one hour of notice", &minAdvance, nil, nil},
		{"booking horizon", "no bookings more than 90 days out", nil, &maxAdvance, nil},
		{"daily cap", "at most two appointments per patient per day", nil, nil, &maxPerDay},
	}

	for _, r := range ruleRows {
		_, err := pool.Exec(ctx, `
			INSERT INTO booking_rules
				(id, clinic_id, name, description, active,
				 min_advance_minutes, max_advance_minutes,
				 appointment_type_ids, staff_ids,
				 new_patients_allowed, max_per_day, max_per_week, max_per_month,
				 created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $6, '{}', '{}', NULL, $7, NULL, NULL, now(), now())
		`, uuid.New(), clinicID, r.name, r.description, r.min, r.max, r.perDay)
		if err != nil {
			return err
		}
	}

	log.Printf("booking rules seeded: %d", len(ruleRows))
	return nil
}

func seedAvailability(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, staffIDs []uuid.UUID) error {
	repo := availability.NewPgRepository(pool)

	// Weekday patterns: morning and afternoon blocks, Mon-Fri.
	windows := []availability.Window{
		{StartMinute: 9 * 60, EndMinute: 12 * 60},
		{StartMinute: 13 * 60, EndMinute: 17 * 60},
	}

	for _, staffID := range staffIDs {
		for weekday := time.Monday; weekday <= time.Friday; weekday++ {
			p := &availability.RecurringAvailability{
				ID:       uuid.New(),
				ClinicID: clinicID,
				StaffID:  staffID,
				Weekday:  weekday,
				Windows:  windows,
				Active:   true,
			}
			if err := repo.CreateRecurring(ctx, p); err != nil {
				return err
			}
		}
	}

	gen := availability.NewGenerator(repo, clinic.NewPgRepository(pool), zerolog.Nop())
	if err := gen.Run(ctx, time.Now(), availability.DefaultHorizonDays); err != nil {
		return err
	}

	log.Printf("availability seeded for %d staff", len(staffIDs))
	return nil
}
