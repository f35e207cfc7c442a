package middleware

import (
	"net/http"
	"strings"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

var securityHeaders = map[string]string{
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
	"Content-Security-Policy": "default-src 'none'; connect-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline';",
}

// SecurityHeaders sets the hardening headers on every response unless a
// handler already set them.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range securityHeaders {
			if h.Get(k) == "" {
				h.Set(k, v)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize limits the request body to n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SafeOrigin rejects requests whose Origin or Referer does not start with
// allowedOrigin. Any origin passes when allowedOrigin is empty.
func SafeOrigin(allowedOrigin string) func(http.Handler) http.Handler {
	allowed := strings.TrimRight(allowedOrigin, "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsSafeOrigin(r, allowed) {
				writeError(w, http.StatusForbidden, "bad origin")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsSafeOrigin reports whether r comes from allowed.
func IsSafeOrigin(r *http.Request, allowed string) bool {
	if allowed == "" {
		return true
	}
	for _, src := range []string{r.Header.Get("Origin"), r.Header.Get("Referer")} {
		src = strings.TrimRight(src, "/")
		if src != "" && strings.HasPrefix(src, allowed) {
			return true
		}
	}
	return false
}
