package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/clinic-booking/internal/api"
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

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, int32(cfg.PgMaxConns))
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	clinicRepo := clinic.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	availRepo := availability.NewPgRepository(pgPool)
	ruleRepo := rules.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)

	locker := redisclient.NewRedisStaffDayLocker(rdb, cfg.LockTTL)
	limiter := redisclient.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)

	notifier := notify.NewService(
		notify.NewHTTPSMSClient(cfg.SMSGatewayURL, cfg.SMSGatewayKey, cfg.SMSSenderName),
		notify.NewHTTPEmailClient(cfg.EmailGatewayURL, cfg.EmailGatewayKey, cfg.EmailFrom),
		log.With().Str("component", "notify").Logger(),
	)

	var calSync calendar.Sync = calendar.Noop{}
	if cfg.CalendarBridgeURL != "" {
		calSync = calendar.NewHTTPSync(cfg.CalendarBridgeURL, cfg.CalendarBridgeKey)
	}

	eval := rules.NewEvaluator(patientRepo, bookingRepo)
	bookingSvc := booking.NewService(
		bookingRepo, clinicRepo, patientRepo, availRepo, ruleRepo, eval,
		locker, notifier, calSync, audit.NewPgRecorder(pgPool),
		log.With().Str("component", "booking").Logger(),
		cfg.SideEffectTimeout,
	)

	router := api.NewRouter(api.RouterConfig{
		Booking:      bookingSvc,
		Rules:        ruleRepo,
		Availability: availRepo,
		Clinics:      clinicRepo,
		RateLimiter:  limiter,
		PgPool:       pgPool,
		Redis:        rdb,
		Log:          log,
		Env:          cfg.Env,
		Version:      version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}
