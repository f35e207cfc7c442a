package relay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/pkg/logger"
	"github.com/capitalize-ai/callerid-relay/pkg/metrics"
)

var tracer = otel.Tracer("github.com/capitalize-ai/callerid-relay/internal/relay")

const minReplyTimeout = 30 * time.Second

// ReplyTimeout bounds the wait for the first reply: the whole seconds of
// the window plus five, but never less than thirty seconds.
func ReplyTimeout(window time.Duration) time.Duration {
	t := time.Duration(math.Floor(window.Seconds()))*time.Second + 5*time.Second
	if t < minReplyTimeout {
		return minReplyTimeout
	}
	return t
}

// Correlator sends a query and obtains the first inbound reply to it.
type Correlator struct {
	transport Transport
	sleep     SleepFunc
	logger    *logger.Logger
}

// NewCorrelator creates a correlator over transport.
func NewCorrelator(transport Transport, sleep SleepFunc, log *logger.Logger) *Correlator {
	if sleep == nil {
		sleep = Sleep
	}
	return &Correlator{
		transport: transport,
		sleep:     sleep,
		logger:    log,
	}
}

// Correlate sends query to target and returns the handle of the first
// reply together with that reply as first read.
//
// A flood-wait signal is honored once (advised wait plus one second) and
// the send is retried; a second signal fails with ErrUpstreamRateLimited.
// When the wait times out the query is sent again without waiting and the
// latest inbound message is taken as the reply; if there is none the call
// fails with ErrUpstreamTimeout.
func (c *Correlator) Correlate(ctx context.Context, target Target, query string, window time.Duration) (Handle, Message, error) {
	ctx, span := tracer.Start(ctx, "relay.correlate", trace.WithAttributes(
		attribute.String("relay.target", target.Name),
		attribute.Float64("relay.window_sec", window.Seconds()),
	))
	defer span.End()

	first, err := c.correlate(ctx, target, query, ReplyTimeout(window))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "correlation failed")
		return Handle{}, Message{}, err
	}

	span.SetAttributes(attribute.Int("relay.first_id", first.ID))
	return Handle{Target: target, FirstID: first.ID}, first, nil
}

func (c *Correlator) correlate(ctx context.Context, target Target, query string, timeout time.Duration) (Message, error) {
	first, err := c.transport.SendAndAwaitReply(ctx, target, query, timeout)

	if wait, ok := AsFloodWait(err); ok {
		metrics.UpstreamFloodWaits.Inc()
		c.logger.Warn("target rate limited, backing off",
			zap.String("target", target.Name),
			zap.Duration("advised_wait", wait),
		)
		if err := c.sleep(ctx, wait+time.Second); err != nil {
			return Message{}, err
		}

		first, err = c.transport.SendAndAwaitReply(ctx, target, query, timeout)
		if wait, ok := AsFloodWait(err); ok {
			metrics.UpstreamFloodWaits.Inc()
			return Message{}, fmt.Errorf("%w (advised wait %s)", ErrUpstreamRateLimited, wait)
		}
	}

	switch {
	case err == nil:
		return first, nil
	case errors.Is(err, ErrReplyTimeout):
		return c.fallback(ctx, target, query, timeout)
	case ctx.Err() != nil:
		return Message{}, context.Cause(ctx)
	default:
		return Message{}, upstream("send", err)
	}
}

func (c *Correlator) fallback(ctx context.Context, target Target, query string, timeout time.Duration) (Message, error) {
	metrics.CorrelationFallbacks.Inc()
	c.logger.Warn("no correlated reply, falling back to latest message",
		zap.String("target", target.Name),
		zap.Duration("timeout", timeout),
	)

	if err := c.transport.SendMessage(ctx, target, query); err != nil {
		return Message{}, upstream("fallback send", err)
	}

	msg, ok, err := c.transport.LatestInbound(ctx, target)
	if err != nil {
		return Message{}, upstream("fallback read", err)
	}
	if !ok {
		return Message{}, ErrUpstreamTimeout
	}
	return msg, nil
}
