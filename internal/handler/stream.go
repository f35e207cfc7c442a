package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

// StreamBatch handles POST /ask-batch/stream
// Each result is sent as an "item" event as soon as it is known, followed
// by a single "done" event.
func (h *LookupHandler) StreamBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, opts, ok := h.parseBatch(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	h.extendWriteDeadline(w)
	results := h.relay.RunBatch(ctx, req.Messages, opts, func(index int, res model.LookupResult) {
		if ctx.Err() != nil {
			return
		}
		h.extendWriteDeadline(w)
		err := sendSSEEvent(w, flusher, "item", &model.BatchItemEvent{
			Index:        index,
			LookupResult: present(res, h.detailedErrors),
		})
		if err != nil {
			h.logger.Warn("failed to send batch item", zap.Int("index", index), zap.Error(err))
		}
	})

	if ctx.Err() != nil {
		h.logger.Info("SSE client disconnected", zap.Int("items", len(results)))
		return
	}

	sendSSEEvent(w, flusher, "done", &model.BatchDoneEvent{Count: len(results)})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
