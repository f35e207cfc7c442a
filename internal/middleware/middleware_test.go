package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/callerid-relay/internal/ratelimit"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(GetSubject(r.Context())))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func signJWT(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAPIKeyOpenWhenUnconfigured(t *testing.T) {
	rec := serve(APIKey("", "")(okHandler), httptest.NewRequest(http.MethodPost, "/ask", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyStatic(t *testing.T) {
	h := APIKey("k3y", "")(okHandler)

	r := httptest.NewRequest(http.MethodPost, "/ask", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "Basic k3y")
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	rec := serve(h, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"bad API key"}`, rec.Body.String())

	r = httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "bearer k3y")
	rec = serve(h, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "api-key", rec.Body.String())
}

func TestAPIKeyJWT(t *testing.T) {
	h := APIKey("k3y", "jwt-secret")(okHandler)

	valid := signJWT(t, "jwt-secret", jwt.RegisteredClaims{
		Subject:   "frontend",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	r := httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "Bearer "+valid)
	rec := serve(h, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "frontend", rec.Body.String())

	expired := signJWT(t, "jwt-secret", jwt.RegisteredClaims{
		Subject:   "frontend",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	r = httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusForbidden, serve(h, r).Code)

	forged := signJWT(t, "other", jwt.RegisteredClaims{Subject: "x"})
	r = httptest.NewRequest(http.MethodPost, "/ask", nil)
	r.Header.Set("Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusForbidden, serve(h, r).Code)
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
	}))
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))
	serve(h, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(strings.Repeat("x", 32))))

	var maxErr *http.MaxBytesError
	assert.True(t, errors.As(readErr, &maxErr), "got %v", readErr)
}

func TestSafeOrigin(t *testing.T) {
	h := SafeOrigin("https://app.example.com/")(okHandler)

	r := httptest.NewRequest(http.MethodPost, "/dev-auth", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, http.StatusOK, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodPost, "/dev-auth", nil)
	r.Header.Set("Referer", "https://app.example.com/settings")
	assert.Equal(t, http.StatusOK, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodPost, "/dev-auth", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodPost, "/dev-auth", nil)
	assert.Equal(t, http.StatusForbidden, serve(h, r).Code)

	open := SafeOrigin("")(okHandler)
	assert.Equal(t, http.StatusOK, serve(open, httptest.NewRequest(http.MethodPost, "/dev-auth", nil)).Code)
}

func TestMinuteLimit(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(100))
	h := MinuteLimit(limiter, 2, "dev_auth", logger.Nop())(okHandler)

	req := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/dev-auth", nil)
		r.RemoteAddr = addr
		return r
	}

	rejected := testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("dev_auth"))

	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1:5000")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1:5001")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req("10.0.0.1:5002")).Code)
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues("dev_auth")))
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.2:5000")).Code)
}

type brokenCounter struct{}

func (brokenCounter) Increment(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestMinuteLimitFailsOpen(t *testing.T) {
	h := MinuteLimit(ratelimit.New(brokenCounter{}), 1, "dev_auth", logger.Nop())(okHandler)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/dev-auth", nil)).Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, time.Minute)(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/ask", nil)).Code)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/ask", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.RemoteAddr = "192.0.2.9"
	assert.Equal(t, "192.0.2.9", ClientIP(r))
}

func TestCORS(t *testing.T) {
	h := CORS("")(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	r.Header.Set("Origin", "http://localhost:8002")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, r)
	assert.Equal(t, "http://localhost:8002", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://elsewhere.example")
	rec = serve(h, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingCorrelationID(t *testing.T) {
	var seen string
	router := chi.NewRouter()
	router.Use(Logging(logger.Nop()))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(CorrelationIDHeader, "abc-123")
	rec := serve(router, r)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateWindow(0))
	assert.NoError(t, ValidateWindow(15))
	assert.Error(t, ValidateWindow(15.5))
	assert.Error(t, ValidateWindow(-1))

	assert.NoError(t, ValidateDelay(0))
	assert.NoError(t, ValidateDelay(10000))
	assert.Error(t, ValidateDelay(10001))

	assert.Error(t, ValidateText(""))
	assert.NoError(t, ValidateText("050-123-4567"))
	assert.Error(t, ValidateText(strings.Repeat("1", MaxTextLength+1)))

	assert.Error(t, ValidateBatch(nil, 10))
	assert.NoError(t, ValidateBatch([]string{"a", ""}, 10))
	assert.Error(t, ValidateBatch([]string{"a", "b", "c"}, 2))
	assert.Error(t, ValidateBatch([]string{"\xff"}, 2))
}
