package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GreenShadeZhang/BotSharp-UI/internal/middleware"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
)

// RouterConfig holds everything the companion router serves.
type RouterConfig struct {
	Health        *HealthHandler
	Status        *StatusHandler
	Notifications *NotificationHandler
	Auth          *AuthHandler
	Events        *EventsHandler

	Secret            string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter builds the companion API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// The identity provider redirects the browser here without our token.
	r.Get("/auth/login", cfg.Auth.Login)
	r.Get("/auth/callback", cfg.Auth.Callback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Secret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/status", cfg.Status.Status)
		r.Get("/events", cfg.Events.Stream)

		r.With(middleware.RequireScope(middleware.ScopeSessionWrite)).Post("/auth/logout", cfg.Auth.Logout)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.Notifications.List)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireScope(middleware.ScopeNotificationsWrite))
				r.Post("/read-all", cfg.Notifications.MarkAllRead)
				r.Delete("/", cfg.Notifications.Clear)
				r.Post("/{id}/read", cfg.Notifications.MarkRead)
				r.Delete("/{id}", cfg.Notifications.Delete)
			})
		})
	})

	return r
}
