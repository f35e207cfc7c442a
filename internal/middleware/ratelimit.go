package middleware

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/ratelimit"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

// ClientIP returns the caller address without port. Forwarding headers
// only count when chi's RealIP middleware was installed in front.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit creates sliding-window rate limiting middleware keyed by
// client IP.
func RateLimit(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "ip:" + ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitRejections.WithLabelValues("lookup").Inc()
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// MinuteLimit allows perMinute requests per client IP and calendar minute.
// A failing counter store lets the request through.
func MinuteLimit(limiter *ratelimit.Limiter, perMinute int, scope string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := limiter.Check(r.Context(), scope+":"+ClientIP(r), perMinute)
			switch {
			case errors.Is(err, ratelimit.ErrLimitExceeded):
				metrics.RateLimitRejections.WithLabelValues(scope).Inc()
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			case err != nil:
				log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}
