package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/internal/phone"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// EventSink receives an event for every finished lookup.
type EventSink interface {
	Publish(ctx context.Context, event *model.LookupEvent) error
}

// Relay runs lookups against one remote target. Lookups against the same
// target are serialized: the platform attributes replies to the most
// recent outbound message, so two in-flight queries would be ambiguous.
type Relay struct {
	transport  Transport
	targetName string
	plan       *phone.Plan
	correlator *Correlator
	aggregator *Aggregator
	sleep      SleepFunc
	events     EventSink
	logger     *logger.Logger

	mu     sync.Mutex
	target *Target
	slots  map[string]chan struct{}
}

// Option configures a Relay.
type Option func(*Relay)

// WithSleep replaces the function used for every scheduled delay.
func WithSleep(sleep SleepFunc) Option {
	return func(r *Relay) { r.sleep = sleep }
}

// WithPlan sets the phone numbering plan used to validate queries.
func WithPlan(plan *phone.Plan) Option {
	return func(r *Relay) { r.plan = plan }
}

// WithEvents publishes lookup outcomes to sink.
func WithEvents(sink EventSink) Option {
	return func(r *Relay) { r.events = sink }
}

// New creates a relay that talks to targetName over transport.
func New(transport Transport, targetName string, log *logger.Logger, opts ...Option) *Relay {
	r := &Relay{
		transport:  transport,
		targetName: targetName,
		plan:       phone.Israel,
		sleep:      Sleep,
		logger:     log.Named("relay"),
		slots:      make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.correlator = NewCorrelator(transport, r.sleep, r.logger)
	r.aggregator = NewAggregator(transport, r.sleep, r.logger)
	return r
}

// Plan returns the numbering plan queries are validated against.
func (r *Relay) Plan() *phone.Plan {
	return r.plan
}

// Target resolves the remote target once and caches it. A failed
// resolution is retried on the next call.
func (r *Relay) Target(ctx context.Context) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.target != nil {
		return *r.target, nil
	}

	t, err := r.transport.ResolveTarget(ctx, r.targetName)
	if err != nil {
		return Target{}, upstream("resolve target", err)
	}
	r.target = &t
	r.logger.Info("target resolved", zap.String("target", r.targetName))
	return t, nil
}

// Ask sends an already normalized query and returns the aggregated
// replies. If aggregation yields nothing, the first reply's text is
// returned alone, even when blank.
func (r *Relay) Ask(ctx context.Context, query string, window time.Duration) ([]string, error) {
	target, err := r.Target(ctx)
	if err != nil {
		return nil, err
	}

	release, err := r.acquire(ctx, target.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	handle, first, err := r.correlator.Correlate(ctx, target, query, window)
	if err != nil {
		return nil, err
	}

	replies, err := r.aggregator.Aggregate(ctx, handle, window)
	if err != nil {
		return nil, err
	}
	if len(replies) == 0 {
		replies = []string{first.TrimmedText()}
	}
	return replies, nil
}

// Lookup normalizes and validates raw, then asks the target. Every
// failure is reported in the result rather than returned.
func (r *Relay) Lookup(ctx context.Context, raw string, window time.Duration) model.LookupResult {
	return r.lookup(ctx, raw, window, false)
}

func (r *Relay) lookup(ctx context.Context, raw string, window time.Duration, batch bool) model.LookupResult {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "relay.lookup", trace.WithAttributes(
		attribute.Bool("relay.batch", batch),
	))
	defer span.End()

	var res model.LookupResult
	query := r.plan.Normalize(strings.TrimSpace(raw))

	switch {
	case query == "":
		res = invalid(raw, ErrEmptyQuery)
	case !r.plan.LooksLikePhone(query):
		res = invalid(raw, ErrNotPhone)
	default:
		r.logger.Debug("lookup started", zap.String("query", query))
		replies, err := r.Ask(ctx, query, window)
		if err != nil {
			res = model.LookupResult{Query: query, Status: model.StatusError, Error: err.Error(), Err: err}
		} else {
			res = model.LookupResult{Query: query, Status: model.StatusOK, Replies: replies}
		}
	}

	span.SetAttributes(attribute.String("relay.status", string(res.Status)))
	r.record(ctx, &res, time.Since(start), batch)
	return res
}

func invalid(raw string, err *ValidationError) model.LookupResult {
	return model.LookupResult{
		Query:  raw,
		Status: model.StatusInvalid,
		Error:  err.Reason,
		Err:    err,
	}
}

func (r *Relay) record(ctx context.Context, res *model.LookupResult, elapsed time.Duration, batch bool) {
	metrics.RecordLookup(string(res.Status), elapsed.Seconds(), len(res.Replies))

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("replies", len(res.Replies)),
		zap.Duration("duration", elapsed),
		zap.Bool("batch", batch),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	r.logger.Info("lookup finished", fields...)

	if r.events == nil {
		return
	}

	event := &model.LookupEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Query:      res.Query,
		Status:     res.Status,
		ReplyCount: len(res.Replies),
		Error:      res.Error,
		DurationMs: elapsed.Milliseconds(),
		Batch:      batch,
		CreatedAt:  time.Now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.events.Publish(pubCtx, event); err != nil {
		r.logger.Warn("failed to publish lookup event", zap.Error(err))
	}
}

// acquire takes the single slot for key, waiting until it is free or ctx
// is done.
func (r *Relay) acquire(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	slot, ok := r.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		r.slots[key] = slot
	}
	r.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %s: %w", key, context.Cause(ctx))
	}
}
