package relay

import (
	"errors"
	"fmt"
	"time"
)

// Validation failures. They are reported per query and never reach the
// remote endpoint.
var (
	ErrEmptyQuery = &ValidationError{Reason: "empty"}
	ErrNotPhone   = &ValidationError{Reason: "not a phone number"}
)

// ValidationError describes why a query was rejected before sending.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason
}

var (
	// ErrUpstreamTimeout is returned when neither the correlated wait nor the
	// fallback read produced a message.
	ErrUpstreamTimeout = errors.New("upstream timeout: no reply from target")

	// ErrUpstreamRateLimited is returned when the platform rate-limited the
	// retry as well.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")

	// ErrReplyTimeout is the transport signal that no inbound message arrived
	// within the wait.
	ErrReplyTimeout = errors.New("timed out waiting for reply")
)

// FloodWaitError is the transport signal that the platform asks the caller
// to wait before sending again.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// UpstreamError wraps any other transport failure. These are never retried.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

// AsFloodWait extracts the advised wait from err.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	return 0, false
}
