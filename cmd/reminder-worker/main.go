package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/clinic-booking/internal/audit"
	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/booking"
	"github.com/careslot/clinic-booking/internal/calendar"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/config"
	"github.com/careslot/clinic-booking/internal/db"
	"github.com/careslot/clinic-booking/internal/logging"
	"github.com/careslot/clinic-booking/internal/notify"
	"github.com/careslot/clinic-booking/internal/patient"
	redisclient "github.com/careslot/clinic-booking/internal/redis"
	"github.com/careslot/clinic-booking/internal/rules"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New("reminder-worker", cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.ReminderInterval).
		Dur("lead", cfg.ReminderLead).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, int32(cfg.PgMaxConns))
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		_ = rdb.Close()
	}()

	clinicRepo := clinic.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)

	notifier := notify.NewService(
		notify.NewHTTPSMSClient(cfg.SMSGatewayURL, cfg.SMSGatewayKey, cfg.SMSSenderName),
		notify.NewHTTPEmailClient(cfg.EmailGatewayURL, cfg.EmailGatewayKey, cfg.EmailFrom),
		log.With().Str("component", "notify").Logger(),
	)

	svc := booking.NewService(
		bookingRepo, clinicRepo, patientRepo,
		availability.NewPgRepository(pgPool),
		rules.NewPgRepository(pgPool),
		rules.NewEvaluator(patientRepo, bookingRepo),
		redisclient.NewRedisStaffDayLocker(rdb, cfg.LockTTL),
		notifier, calendar.Noop{}, audit.NewPgRecorder(pgPool),
		log.With().Str("component", "booking").Logger(),
		cfg.SideEffectTimeout,
	)

	runOnce(rootCtx, svc, cfg.ReminderLead, log)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReminderLead, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, lead time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if err := svc.DispatchReminders(runCtx, start, start.Add(lead)); err != nil {
		log.Error().Err(err).Msg("reminder run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("reminder run complete")
}
