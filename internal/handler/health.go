package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// Identity returns the username of the relay account.
type Identity interface {
	Me(ctx context.Context) (string, error)
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Ready func() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	identity Identity
	devAuth  *DevAuthHandler
	checks   []Check
	logger   *logger.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(identity Identity, devAuth *DevAuthHandler, log *logger.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{
		identity: identity,
		devAuth:  devAuth,
		checks:   checks,
		logger:   log,
	}
}

// Health handles GET /health
// The account identity is only included for developer-mode callers.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{OK: true}

	if h.identity != nil && h.devAuth != nil && h.devAuth.Authorized(r) {
		me, err := h.identity.Me(r.Context())
		if err != nil {
			h.logger.Warn("failed to fetch account identity", zap.Error(err))
		} else {
			resp.Me = &me
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if !c.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": c.Name + " not connected",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
