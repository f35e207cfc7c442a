package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// DefaultOrigins are allowed when no frontend origin is configured.
var DefaultOrigins = []string{"http://localhost:8002", "http://127.0.0.1:8002"}

// CORS returns a CORS middleware allowing frontendOrigin, or the local
// development origins when it is empty.
func CORS(frontendOrigin string) func(http.Handler) http.Handler {
	origins := DefaultOrigins
	if o := strings.TrimRight(frontendOrigin, "/"); o != "" {
		origins = []string{o}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-CSRF-Token", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
