package relay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// MinWindow is the shortest reply window ever waited.
const MinWindow = 100 * time.Millisecond

type refreshOutcome int

const (
	refreshFound refreshOutcome = iota
	refreshNotFound
	refreshFailed
)

func (o refreshOutcome) String() string {
	switch o {
	case refreshFound:
		return "found"
	case refreshNotFound:
		return "not_found"
	default:
		return "fetch_failed"
	}
}

// Aggregator collects the replies that follow a correlated first message.
type Aggregator struct {
	transport Transport
	sleep     SleepFunc
	logger    *logger.Logger
}

// NewAggregator creates an aggregator over transport.
func NewAggregator(transport Transport, sleep SleepFunc, log *logger.Logger) *Aggregator {
	if sleep == nil {
		sleep = Sleep
	}
	return &Aggregator{
		transport: transport,
		sleep:     sleep,
		logger:    log,
	}
}

// Aggregate waits for the window, then returns the first message as it
// reads now (bots edit it in place) followed by every later inbound
// message, oldest first, with blank entries dropped and adjacent repeats
// collapsed. The result may be empty.
func (a *Aggregator) Aggregate(ctx context.Context, h Handle, window time.Duration) ([]string, error) {
	if window < MinWindow {
		window = MinWindow
	}

	ctx, span := tracer.Start(ctx, "relay.aggregate", trace.WithAttributes(
		attribute.Int("relay.first_id", h.FirstID),
		attribute.Float64("relay.window_sec", window.Seconds()),
	))
	defer span.End()

	if err := a.sleep(ctx, window); err != nil {
		return nil, err
	}

	var replies []string

	first, outcome := a.refresh(ctx, h)
	span.SetAttributes(attribute.String("relay.refresh", outcome.String()))
	// refreshNotFound and refreshFailed both continue without the first message.
	if outcome == refreshFound {
		if text := first.TrimmedText(); text != "" {
			replies = append(replies, text)
		}
	}

	later, err := a.transport.MessagesAfter(ctx, h.Target, h.FirstID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch replies failed")
		return nil, upstream("fetch replies", err)
	}

	// later is newest first.
	for i := len(later) - 1; i >= 0; i-- {
		msg := later[i]
		if !msg.Inbound() || msg.ID <= h.FirstID {
			continue
		}
		if text := msg.TrimmedText(); text != "" {
			replies = append(replies, text)
		}
	}

	replies = CollapseAdjacent(replies)
	span.SetAttributes(attribute.Int("relay.replies", len(replies)))
	return replies, nil
}

func (a *Aggregator) refresh(ctx context.Context, h Handle) (Message, refreshOutcome) {
	msg, ok, err := a.transport.MessageByID(ctx, h.Target, h.FirstID)
	switch {
	case err != nil:
		a.logger.Warn("refresh of first reply failed",
			zap.Int("message_id", h.FirstID),
			zap.Error(err),
		)
		return Message{}, refreshFailed
	case !ok:
		return Message{}, refreshNotFound
	default:
		return msg, refreshFound
	}
}

// CollapseAdjacent drops empty strings and any entry equal to the entry
// kept just before it. Repeats that are not adjacent are kept.
func CollapseAdjacent(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
