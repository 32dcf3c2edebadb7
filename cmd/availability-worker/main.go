package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/config"
	"github.com/careslot/clinic-booking/internal/db"
	"github.com/careslot/clinic-booking/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New("availability-worker", cfg.Env)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.AvailabilityInterval).
		Int("horizon_days", cfg.AvailabilityHorizon).
		Msg("availability-worker starting up")

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

	gen := availability.NewGenerator(
		availability.NewPgRepository(pgPool),
		clinic.NewPgRepository(pgPool),
		log,
	)

	// Run once at startup
	runOnce(rootCtx, gen, cfg.AvailabilityHorizon, log)

	ticker := time.NewTicker(cfg.AvailabilityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping availability worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, gen, cfg.AvailabilityHorizon, log)
		}
	}
}

func runOnce(ctx context.Context, gen *availability.Generator, horizonDays int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	if err := gen.Run(runCtx, start, horizonDays); err != nil {
		log.Error().Err(err).Msg("availability generation run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("availability generation run complete")
}
