package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/clinic-scheduling/internal/authz"
	"github.com/clinova/clinic-scheduling/internal/scheduling"
)

// AuthModuleCode is the module this service is registered as in the auth
// service's permission matrix.
const AuthModuleCode = "clinics"

type RouterConfig struct {
	Service *scheduling.Service
	Auth    *authz.Middleware
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Public chatbot endpoints, no auth
	r.Route("/public", func(r chi.Router) {
		r.Get("/specialties", listSpecialtiesHandler(cfg.Service))
		r.Get("/specialties/{id}/doctors", listDoctorsBySpecialtyHandler(cfg.Service))
		r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Service))
		r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	})

	// Staff endpoints behind the auth service
	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.RequireAuth)
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/state", changeStateHandler(cfg.Service))
	})

	return r
}
