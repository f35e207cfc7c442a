// Package ratelimit implements a per-client fixed-minute request counter.
//
// Every request increments the counter of (client, current minute); a
// request is rejected once that counter exceeds the limit. Counters of past
// minutes are never reset, they simply stop being read and expire from the
// backing store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// bucketTTL keeps a minute bucket around a little longer than its minute.
const bucketTTL = 2 * time.Minute

// ErrLimitExceeded is returned when the client used up its minute.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Counter atomically increments a named counter and returns the new value.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// Limiter checks clients against a per-minute budget.
type Limiter struct {
	counter Counter
	now     func() time.Time
}

// New creates a limiter over counter.
func New(counter Counter) *Limiter {
	return &Limiter{
		counter: counter,
		now:     time.Now,
	}
}

// Check counts one request for clientKey and returns ErrLimitExceeded if
// it is over limitPerMinute in the current minute.
func (l *Limiter) Check(ctx context.Context, clientKey string, limitPerMinute int) error {
	minute := l.now().Unix() / 60
	n, err := l.counter.Increment(ctx, fmt.Sprintf("%s:%d", clientKey, minute))
	if err != nil {
		return fmt.Errorf("rate limit counter: %w", err)
	}
	if n > int64(limitPerMinute) {
		return ErrLimitExceeded
	}
	return nil
}
