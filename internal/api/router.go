package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/clinic-booking/internal/availability"
	"github.com/careslot/clinic-booking/internal/booking"
	"github.com/careslot/clinic-booking/internal/clinic"
	"github.com/careslot/clinic-booking/internal/rules"
)

type RouterConfig struct {
	Booking      *booking.Service
	Rules        rules.Repository
	Availability availability.Repository
	Clinics      clinic.Repository
	RateLimiter  CallerLimiter
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1/clinics/{clinicID}", func(r chi.Router) {
		// Public booking surface. Booking writes go through the shared
		// rate limiter.
		r.Get("/appointment-types", listAppointmentTypesHandler(cfg.Clinics))
		r.Get("/staff/{staffID}/slots", listSlotsHandler(cfg.Booking))

		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(RateLimitMiddleware(cfg.RateLimiter, cfg.Log))
			}
			r.Post("/appointments", bookAppointmentHandler(cfg.Booking))
			r.Post("/appointments/recurring", bookRecurringHandler(cfg.Booking))
		})

		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking, true))

		// Dashboard surface.
		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/staff-cancel", cancelAppointmentHandler(cfg.Booking, false))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/no-show", noShowAppointmentHandler(cfg.Booking))

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", listRulesHandler(cfg.Rules))
			r.Post("/", createRuleHandler(cfg.Rules))
			r.Get("/{id}", getRuleHandler(cfg.Rules))
			r.Put("/{id}", updateRuleHandler(cfg.Rules))
			r.Delete("/{id}", deleteRuleHandler(cfg.Rules))
		})

		r.Route("/staff/{staffID}/availability", func(r chi.Router) {
			r.Get("/", listDailyAvailabilityHandler(cfg.Availability))
			r.Put("/", setDailyAvailabilityHandler(cfg.Availability))
			r.Delete("/", deleteDailyAvailabilityHandler(cfg.Availability))

			r.Get("/recurring", listRecurringAvailabilityHandler(cfg.Availability))
			r.Post("/recurring", createRecurringAvailabilityHandler(cfg.Availability))
			r.Put("/recurring/{id}", updateRecurringAvailabilityHandler(cfg.Availability))
			r.Delete("/recurring/{id}", deleteRecurringAvailabilityHandler(cfg.Availability))
		})
	})

	return r
}
