// Package handler implements the HTTP endpoints of the relay.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/internal/relay"
)

const (
	defaultWindowSec = 1.0
	defaultDelayMs   = 500

	internalError = "internal error"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.OKResponse{OK: false, Error: message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps a lookup failure to an HTTP status.
func statusFor(err error) int {
	var upErr *relay.UpstreamError
	switch {
	case errors.Is(err, relay.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, relay.ErrUpstreamRateLimited):
		return http.StatusServiceUnavailable
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicError is the error text a client sees for a failed lookup. Only
// development mode exposes the underlying error.
func publicError(err error, detailed bool) string {
	switch {
	case err == nil:
		return ""
	case detailed:
		return err.Error()
	case errors.Is(err, relay.ErrUpstreamTimeout):
		return "upstream timeout"
	case errors.Is(err, relay.ErrUpstreamRateLimited):
		return "upstream rate limited"
	default:
		return internalError
	}
}

// present prepares a result for the response body. Replies is always a
// list, empty when there are none.
func present(res model.LookupResult, detailed bool) model.LookupResult {
	if res.Replies == nil {
		res.Replies = []string{}
	}
	if res.Status == model.StatusError {
		res.Error = publicError(res.Err, detailed)
	}
	return res
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
