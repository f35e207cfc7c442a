package relay

import (
	"context"
	"time"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

// BatchOptions controls a batch run.
type BatchOptions struct {
	// Delay is waited after every item that reached the target, except
	// the last one.
	Delay time.Duration
	// Window is the reply window of each lookup.
	Window time.Duration
}

// ResultFunc is called with each batch result as soon as it is known.
type ResultFunc func(index int, result model.LookupResult)

// RunBatch looks up queries one after another, in order. A failing item
// never stops the batch; the result always has one entry per query. Once
// ctx is done the remaining items are reported as errors without being
// sent.
func (r *Relay) RunBatch(ctx context.Context, queries []string, opts BatchOptions, onResult ResultFunc) []model.LookupResult {
	results := make([]model.LookupResult, 0, len(queries))

	for i, raw := range queries {
		var res model.LookupResult
		sent := false

		if ctx.Err() != nil {
			err := context.Cause(ctx)
			res = model.LookupResult{Query: raw, Status: model.StatusError, Error: err.Error(), Err: err}
		} else {
			res = r.lookup(ctx, raw, opts.Window, true)
			sent = res.Status != model.StatusInvalid
		}

		results = append(results, res)
		metrics.BatchItemsTotal.WithLabelValues(string(res.Status)).Inc()
		if onResult != nil {
			onResult(i, res)
		}

		if sent && opts.Delay > 0 && i < len(queries)-1 {
			// A cancelled delay shows up as cancelled items above.
			_ = r.sleep(ctx, opts.Delay)
		}
	}

	return results
}
