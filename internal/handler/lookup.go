package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/middleware"
	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/internal/relay"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// Relay is the lookup pipeline behind the endpoints.
type Relay interface {
	Lookup(ctx context.Context, raw string, window time.Duration) model.LookupResult
	RunBatch(ctx context.Context, queries []string, opts relay.BatchOptions, onResult relay.ResultFunc) []model.LookupResult
}

// LookupHandler handles /ask and /ask-batch.
type LookupHandler struct {
	relay          Relay
	maxBatchItems  int
	writeTimeout   time.Duration
	detailedErrors bool
	logger         *logger.Logger
}

// NewLookupHandler creates a new lookup handler. writeTimeout is the
// server write timeout; batch handlers renew it as items complete.
func NewLookupHandler(r Relay, maxBatchItems int, writeTimeout time.Duration, detailedErrors bool, log *logger.Logger) *LookupHandler {
	return &LookupHandler{
		relay:          r,
		maxBatchItems:  maxBatchItems,
		writeTimeout:   writeTimeout,
		detailedErrors: detailedErrors,
		logger:         log,
	}
}

// Ask handles POST /ask
func (h *LookupHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req model.AskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	windowSec := defaultWindowSec
	if req.WindowSec != nil {
		windowSec = *req.WindowSec
	}
	if err := middleware.ValidateWindow(windowSec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := h.relay.Lookup(r.Context(), req.Text, seconds(windowSec))

	status := http.StatusOK
	if res.Status == model.StatusError {
		status = statusFor(res.Err)
		h.logger.WithRequest(middleware.GetCorrelationID(r.Context())).Warn("ask failed",
			zap.Int("status", status),
			zap.String("subject", middleware.GetSubject(r.Context())),
			zap.Error(res.Err),
		)
	}

	res = present(res, h.detailedErrors)
	writeJSON(w, status, &model.AskResponse{
		OK:      res.OK(),
		Query:   res.Query,
		Replies: res.Replies,
		Status:  res.Status,
		Error:   res.Error,
	})
}

// Batch handles POST /ask-batch
func (h *LookupHandler) Batch(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := h.parseBatch(w, r)
	if !ok {
		return
	}

	h.extendWriteDeadline(w)
	results := h.relay.RunBatch(r.Context(), req.Messages, opts, func(int, model.LookupResult) {
		h.extendWriteDeadline(w)
	})
	for i := range results {
		results[i] = present(results[i], h.detailedErrors)
	}

	writeJSON(w, http.StatusOK, &model.BatchResponse{
		OK:      true,
		Count:   len(results),
		Results: results,
	})
}

// extendWriteDeadline moves the connection write deadline writeTimeout
// past now. A batch can run longer than one server write timeout.
func (h *LookupHandler) extendWriteDeadline(w http.ResponseWriter) {
	if h.writeTimeout <= 0 {
		return
	}
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("failed to extend write deadline", zap.Error(err))
	}
}

func (h *LookupHandler) parseBatch(w http.ResponseWriter, r *http.Request) (*model.BatchRequest, relay.BatchOptions, bool) {
	var req model.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, relay.BatchOptions{}, false
	}

	if err := middleware.ValidateBatch(req.Messages, h.maxBatchItems); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, relay.BatchOptions{}, false
	}

	delayMs := defaultDelayMs
	if req.DelayMs != nil {
		delayMs = *req.DelayMs
	}
	if err := middleware.ValidateDelay(delayMs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, relay.BatchOptions{}, false
	}

	windowSec := defaultWindowSec
	if req.WindowSec != nil {
		windowSec = *req.WindowSec
	}
	if err := middleware.ValidateWindow(windowSec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, relay.BatchOptions{}, false
	}

	return &req, relay.BatchOptions{
		Delay:  time.Duration(delayMs) * time.Millisecond,
		Window: seconds(windowSec),
	}, true
}
