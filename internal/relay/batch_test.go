package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/callerid-relay/internal/model"
)

func TestRunBatchIsolatesInvalidItems(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{
		{msg: inbound(10, "first answer")},
		{msg: inbound(20, "third answer")},
	}}
	sleeper := &sleepRecorder{}
	r := newTestRelay(ft, sleeper)

	var streamed []int
	results := r.RunBatch(context.Background(),
		[]string{"0501234567", "not a number", "0521234567"},
		BatchOptions{Delay: 500 * time.Millisecond, Window: time.Second},
		func(i int, _ model.LookupResult) { streamed = append(streamed, i) },
	)

	require.Len(t, results, 3)
	assert.Equal(t, model.StatusOK, results[0].Status)
	assert.Equal(t, []string{"first answer"}, results[0].Replies)
	assert.Equal(t, model.StatusInvalid, results[1].Status)
	assert.Equal(t, "not a number", results[1].Query)
	assert.Equal(t, model.StatusOK, results[2].Status)
	assert.Equal(t, "+972521234567", results[2].Query)
	assert.Equal(t, []int{0, 1, 2}, streamed)

	// window of item 1, spacing after item 1, window of item 3; the
	// invalid item adds nothing and no spacing follows the last item.
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond, time.Second}, sleeper.Durations())
	assert.Equal(t, []string{"+972501234567", "+972521234567"}, ft.sent)
}

func TestRunBatchContinuesAfterErrors(t *testing.T) {
	ft := &fakeTransport{awaits: []awaitResult{
		{err: &FloodWaitError{Wait: time.Second}},
		{err: &FloodWaitError{Wait: time.Second}},
		{msg: inbound(30, "ok")},
	}}
	r := newTestRelay(ft, &sleepRecorder{})

	results := r.RunBatch(context.Background(), []string{"0501234567", "0501234568"}, BatchOptions{}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, model.StatusError, results[0].Status)
	assert.ErrorIs(t, results[0].Err, ErrUpstreamRateLimited)
	assert.Equal(t, model.StatusOK, results[1].Status)
}

func TestRunBatchCancelledMarksRemainingItems(t *testing.T) {
	ft := &fakeTransport{}
	r := newTestRelay(ft, &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.RunBatch(ctx, []string{"0501234567", "0501234568", ""}, BatchOptions{Delay: time.Second}, nil)

	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, model.StatusError, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Empty(t, ft.sent)
}
