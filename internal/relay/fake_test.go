package relay

import (
	"context"
	"sync"
	"time"
)

type awaitResult struct {
	msg Message
	err error
}

// fakeTransport is a scripted Transport. SendAndAwaitReply consumes the
// awaits queue in order; once it is empty every call times out.
type fakeTransport struct {
	mu sync.Mutex

	resolveErr   error
	resolveCalls int

	awaits   []awaitResult
	timeouts []time.Duration

	sent    []string
	sendErr error

	latest    *Message
	latestErr error

	byID    map[int]Message
	byIDErr error

	// after is returned newest first, as the platform does.
	after    []Message
	afterErr error
}

func (f *fakeTransport) ResolveTarget(_ context.Context, name string) (Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.resolveErr != nil {
		return Target{}, f.resolveErr
	}
	return Target{Name: name, Ref: name}, nil
}

func (f *fakeTransport) SendAndAwaitReply(_ context.Context, _ Target, text string, timeout time.Duration) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.timeouts = append(f.timeouts, timeout)
	if len(f.awaits) == 0 {
		return Message{}, ErrReplyTimeout
	}
	next := f.awaits[0]
	f.awaits = f.awaits[1:]
	return next.msg, next.err
}

func (f *fakeTransport) SendMessage(_ context.Context, _ Target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) LatestInbound(context.Context, Target) (Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return Message{}, false, f.latestErr
	}
	if f.latest == nil {
		return Message{}, false, nil
	}
	return *f.latest, true, nil
}

func (f *fakeTransport) MessageByID(_ context.Context, _ Target, id int) (Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byIDErr != nil {
		return Message{}, false, f.byIDErr
	}
	msg, ok := f.byID[id]
	return msg, ok, nil
}

func (f *fakeTransport) MessagesAfter(_ context.Context, _ Target, id int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.afterErr != nil {
		return nil, f.afterErr
	}
	var out []Message
	for _, m := range f.after {
		if m.ID > id {
			out = append(out, m)
		}
	}
	return out, nil
}

// sleepRecorder replaces real waiting in tests.
type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

func inbound(id int, text string) Message {
	return Message{ID: id, Text: text}
}

func outbound(id int, text string) Message {
	return Message{ID: id, Text: text, Out: true}
}
