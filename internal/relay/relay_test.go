package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*model.LookupEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event *model.LookupEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func newTestRelay(ft *fakeTransport, sleeper *sleepRecorder, opts ...Option) *Relay {
	opts = append([]Option{WithSleep(sleeper.Sleep)}, opts...)
	return New(ft, "@bot", logger.Nop(), opts...)
}

func TestAskReturnsAggregatedReplies(t *testing.T) {
	ft := &fakeTransport{
		awaits: []awaitResult{{msg: inbound(10, "searching...")}},
		byID:   map[int]Message{10: inbound(10, "Name: Dana")},
		after:  []Message{inbound(11, "Spam score: low")},
	}
	r := newTestRelay(ft, &sleepRecorder{})

	replies, err := r.Ask(context.Background(), "+972501234567", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name: Dana", "Spam score: low"}, replies)
}

func TestAskFallsBackToFirstText(t *testing.T) {
	ft := &fakeTransport{
		awaits:  []awaitResult{{msg: inbound(10, "  original  ")}},
		byIDErr: errors.New("gone"),
	}
	r := newTestRelay(ft, &sleepRecorder{})

	replies, err := r.Ask(context.Background(), "+972501234567", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"original"}, replies)
}

func TestAskFallbackMayBeBlank(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{{msg: inbound(10, "")}}}
	r := newTestRelay(ft, &sleepRecorder{})

	replies, err := r.Ask(context.Background(), "+972501234567", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, replies)
}

func TestTargetResolvedOnce(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{
		{msg: inbound(1, "a")},
		{msg: inbound(2, "b")},
	}}
	r := newTestRelay(ft, &sleepRecorder{})

	_, err := r.Ask(context.Background(), "+972501234567", 0)
	require.NoError(t, err)
	_, err = r.Ask(context.Background(), "+972501234568", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, ft.resolveCalls)
}

func TestTargetResolutionFailure(t *testing.T) {
	ft := &fakeTransport{resolveErr: errors.New("username not occupied")}
	r := newTestRelay(ft, &sleepRecorder{})

	_, err := r.Ask(context.Background(), "+972501234567", 0)
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "resolve target", upErr.Op)

	_, _ = r.Target(context.Background())
	assert.Equal(t, 2, ft.resolveCalls)
}

func TestLookupStatuses(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{{msg: inbound(10, "found")}}}
	sink := &recordingSink{}
	r := newTestRelay(ft, &sleepRecorder{}, WithEvents(sink))

	ok := r.Lookup(context.Background(), "050-1234567", time.Second)
	assert.Equal(t, model.StatusOK, ok.Status)
	assert.Equal(t, "+972501234567", ok.Query)
	assert.Equal(t, []string{"found"}, ok.Replies)

	empty := r.Lookup(context.Background(), "   ", time.Second)
	assert.Equal(t, model.StatusInvalid, empty.Status)
	assert.Equal(t, "empty", empty.Error)
	assert.ErrorIs(t, empty.Err, ErrEmptyQuery)

	notPhone := r.Lookup(context.Background(), "hello", time.Second)
	assert.Equal(t, model.StatusInvalid, notPhone.Status)
	assert.Equal(t, "hello", notPhone.Query)
	assert.Equal(t, "not a phone number", notPhone.Error)

	failed := r.Lookup(context.Background(), "0501234568", time.Second)
	assert.Equal(t, model.StatusError, failed.Status)
	assert.ErrorIs(t, failed.Err, ErrUpstreamTimeout)

	require.Len(t, sink.events, 4)
	assert.Equal(t, model.StatusOK, sink.events[0].Status)
	assert.Equal(t, 1, sink.events[0].ReplyCount)
	assert.NotEmpty(t, sink.events[0].ID)
	assert.Equal(t, model.StatusError, sink.events[3].Status)
}

func TestLookupPublishFailureDoesNotAffectResult(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{{msg: inbound(10, "found")}}}
	sink := &recordingSink{err: errors.New("nats down")}
	r := newTestRelay(ft, &sleepRecorder{}, WithEvents(sink))

	res := r.Lookup(context.Background(), "0501234567", time.Second)
	assert.True(t, res.OK())
}

func TestAcquireSerializesPerTarget(t *testing.T) {
	r := newTestRelay(&fakeTransport{}, &sleepRecorder{})

	release, err := r.acquire(context.Background(), "@bot")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.acquire(ctx, "@bot")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := r.acquire(context.Background(), "@other")
	require.NoError(t, err)
	other()

	release()
	again, err := r.acquire(context.Background(), "@bot")
	require.NoError(t, err)
	again()
}
