package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/pkg/health"
	"github.com/utafrali/HabitGo/pkg/middleware"
)

// ServiceName labels metrics and spans.
const ServiceName = "habit-service"

// Services groups the application services the routes call into.
type Services struct {
	Auth     *service.AuthService
	Tokens   *service.TokenService
	Users    *service.UserService
	Profiles *service.ProfileService
	Habits   *service.HabitService
}

// RouterConfig holds the infrastructure the router mounts.
type RouterConfig struct {
	Health         *health.Handler
	Registry       *prometheus.Registry
	RateLimiter    *middleware.RateLimiter
	CORS           middleware.CORSConfig
	AvatarMaxBytes int64
	// Media serves avatars when they are kept in process memory.
	Media http.Handler
}

// NewRouter creates a chi router with all habit service routes registered.
func NewRouter(svc Services, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry, ServiceName).Handler)
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))

	if cfg.Media != nil {
		r.Get("/media/*", cfg.Media.ServeHTTP)
	}

	authHandler := NewAuthHandler(svc.Auth, logger)
	userHandler := NewUserHandler(svc.Users, logger)
	profileHandler := NewProfileHandler(svc.Profiles, cfg.AvatarMaxBytes, logger)
	habitHandler := NewHabitHandler(svc.Habits, logger)

	throttle := passThrough
	if cfg.RateLimiter != nil {
		throttle = cfg.RateLimiter.Handler
	}

	// Public auth endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register/", authHandler.Register)
		r.With(throttle).Post("/login/", authHandler.Login)
		r.Post("/token/refresh/", authHandler.Refresh)
		r.With(throttle).Post("/request_reset_password/", authHandler.RequestPasswordReset)
		r.Get("/password_reset_confirm/{uidb64}/{token}/", authHandler.PasswordResetConfirm)
		r.With(throttle).Patch("/password_reset_complete/", authHandler.PasswordResetComplete)
	})

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(svc.Tokens.Authenticate, logger))
		r.Use(middleware.RequestLogger(logger))

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/logout/", authHandler.Logout)
			r.Get("/user_detail/", userHandler.Detail)
			r.Delete("/delete_user/", userHandler.Delete)

			r.Get("/habits/", habitHandler.List)
			r.Post("/habits/", habitHandler.Create)
			r.Get("/habits/{id}/", habitHandler.Get)
			r.Put("/habits/{id}/", habitHandler.Update)
			r.Delete("/habits/{id}/", habitHandler.Delete)
			r.Get("/habits/{id}/trackings/", habitHandler.ListTrackings)
			r.Post("/trackings/", habitHandler.CreateTracking)
		})

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeForm)

			r.Get("/profile/", profileHandler.Get)
			r.Post("/profile/", profileHandler.Create)
			r.Put("/profile/", profileHandler.Update)
			r.Delete("/profile/", profileHandler.Delete)
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
