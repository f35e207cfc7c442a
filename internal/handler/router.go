package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/callerid-relay/internal/middleware"
	"github.com/capitalize-ai/callerid-relay/internal/ratelimit"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// RouterConfig wires handlers and the middleware settings into a router.
type RouterConfig struct {
	Lookup  *LookupHandler
	DevAuth *DevAuthHandler
	Health  *HealthHandler

	// TrustProxy takes the client address from X-Real-IP and
	// X-Forwarded-For. Only enable behind a proxy that overwrites them.
	TrustProxy bool

	APIBase        string
	FrontendOrigin string
	APIKey         string
	JWTSecret      string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	DevAuthLimiter    *ratelimit.Limiter
	DevAuthPerMinute  int

	Logger *logger.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(middleware.MaxBodySize(middleware.MaxBodyBytes))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Get("/config", Config(cfg.APIBase))

	r.Handle("/metrics", promhttp.Handler())

	// Lookups
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.APIKey(cfg.APIKey, cfg.JWTSecret))

		r.Post("/ask", cfg.Lookup.Ask)
		r.Post("/ask-batch", cfg.Lookup.Batch)
		r.Post("/ask-batch/stream", cfg.Lookup.StreamBatch)
	})

	// Developer mode
	guarded := r.With(
		middleware.MinuteLimit(cfg.DevAuthLimiter, cfg.DevAuthPerMinute, "dev_auth", cfg.Logger),
		middleware.SafeOrigin(cfg.FrontendOrigin),
	)
	guarded.Post("/dev-auth", cfg.DevAuth.Check)
	guarded.Post("/dev-auth/login", cfg.DevAuth.Login)
	r.Get("/dev-auth/status", cfg.DevAuth.Status)
	r.Post("/dev-auth/logout", cfg.DevAuth.Logout)

	return r
}
