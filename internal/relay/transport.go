// Package relay correlates a query sent to a remote chat bot with the
// replies it produces, and reduces those replies to one ordered answer.
package relay

import (
	"context"
	"strings"
	"time"
)

// Target is a resolved remote conversational endpoint.
type Target struct {
	// Name is the identifier the target was resolved from, e.g. "@SomeBot".
	Name string
	// Ref is the transport-specific handle (an input peer for Telegram).
	Ref any
}

// Message is one message of the conversation with the target.
type Message struct {
	ID       int
	Text     string
	Out      bool
	SentAt   time.Time
	EditedAt time.Time
}

// Inbound reports whether the message was sent by the remote side.
func (m Message) Inbound() bool {
	return !m.Out
}

// Edited reports whether the message was edited after it was sent.
func (m Message) Edited() bool {
	return !m.EditedAt.IsZero()
}

// TrimmedText returns the message text without surrounding whitespace.
func (m Message) TrimmedText() string {
	return strings.TrimSpace(m.Text)
}

// Transport is the messaging platform as seen by the relay.
//
// SendAndAwaitReply returns *FloodWaitError when the platform asks the
// caller to back off and ErrReplyTimeout when no inbound message arrived
// within timeout. MessagesAfter returns messages newest first.
type Transport interface {
	ResolveTarget(ctx context.Context, name string) (Target, error)
	SendAndAwaitReply(ctx context.Context, target Target, text string, timeout time.Duration) (Message, error)
	SendMessage(ctx context.Context, target Target, text string) error
	LatestInbound(ctx context.Context, target Target) (Message, bool, error)
	MessageByID(ctx context.Context, target Target, id int) (Message, bool, error)
	MessagesAfter(ctx context.Context, target Target, id int) ([]Message, error)
}

// Handle correlates a query with the conversation: everything after
// FirstID belongs to the answer.
type Handle struct {
	Target  Target
	FirstID int
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
