package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/auth"
	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/doctor"
)

type RouterConfig struct {
	Auth     *auth.Service
	Issuer   *auth.TokenIssuer
	Doctors  *doctor.Service
	Bookings *booking.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
	Log      zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public routes.
	r.Route("/auth", func(r chi.Router) {
		r.Post("/patient/register", registerPatientHandler(cfg.Auth))
		r.Post("/patient/login", loginPatientHandler(cfg.Auth))
		r.Post("/doctor/register", registerDoctorHandler(cfg.Auth))
		r.Post("/doctor/login", loginDoctorHandler(cfg.Auth))
	})

	r.Get("/doctors", searchDoctorsHandler(cfg.Doctors))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Doctors))
	r.Get("/doctors/{id}/reviews", doctorReviewsHandler(cfg.Bookings))
	r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Bookings))
	r.Get("/doctors/{id}/booked-slots", bookedSlotsHandler(cfg.Bookings))

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Issuer))

		r.Get("/appointments", listAppointmentsHandler(cfg.Bookings))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings))
		r.Post("/appointments/{id}/join", joinAppointmentHandler(cfg.Bookings))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RolePatient))
			r.Post("/appointments", bookAppointmentHandler(cfg.Bookings))
			r.Post("/appointments/{id}/feedback", feedbackHandler(cfg.Bookings))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleDoctor))
			r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Bookings))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
			r.Put("/doctors/me/profile", updateProfileHandler(cfg.Doctors))
			r.Get("/doctors/me/dashboard", dashboardHandler(cfg.Bookings))
		})
	})

	return r
}
