package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/callerid-relay/internal/model"
)

type published struct {
	subject string
	data    []byte
}

type fakeJetStream struct {
	streamErr  error
	created    []jetstream.StreamConfig
	published  []published
	publishErr error
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	return nil, f.streamErr
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	return nil, nil
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, published{subject: subject, data: payload})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.published))}, nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "lookup.ok", Subject(model.StatusOK))
	assert.Equal(t, "lookup.invalid", Subject(model.StatusInvalid))
	assert.Equal(t, "lookup.error", Subject(model.StatusError))
}

func TestEnsureStreamCreatesMissingStream(t *testing.T) {
	js := &fakeJetStream{streamErr: jetstream.ErrStreamNotFound}
	p := &Publisher{js: js}

	require.NoError(t, p.EnsureStream(context.Background()))
	require.Len(t, js.created, 1)
	assert.Equal(t, StreamName, js.created[0].Name)
	assert.Equal(t, []string{"lookup.>"}, js.created[0].Subjects)
	assert.Equal(t, jetstream.MemoryStorage, js.created[0].Storage)
	assert.Equal(t, 24*time.Hour, js.created[0].MaxAge)
}

func TestEnsureStreamExisting(t *testing.T) {
	js := &fakeJetStream{}
	p := &Publisher{js: js}

	require.NoError(t, p.EnsureStream(context.Background()))
	assert.Empty(t, js.created)

	js.streamErr = errors.New("nats: timeout")
	assert.Error(t, p.EnsureStream(context.Background()))
	assert.Empty(t, js.created)
}

func TestPublishEvent(t *testing.T) {
	js := &fakeJetStream{}
	p := &Publisher{js: js}

	event := &model.LookupEvent{
		ID:         "0190a0c4-0000-7000-8000-000000000001",
		Query:      "+972501234567",
		Status:     model.StatusOK,
		ReplyCount: 2,
		DurationMs: 1500,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, js.published, 1)
	assert.Equal(t, "lookup.ok", js.published[0].subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(js.published[0].data, &got))
	assert.Equal(t, "+972501234567", got["query"])
	assert.EqualValues(t, 2, got["reply_count"])
	assert.NotContains(t, got, "replies")
}

func TestPublishError(t *testing.T) {
	js := &fakeJetStream{publishErr: errors.New("no responders")}
	p := &Publisher{js: js}

	err := p.Publish(context.Background(), &model.LookupEvent{ID: "x", Status: model.StatusError})
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), &model.LookupEvent{}))
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{URL: "nats://localhost:4222"}.Enabled())
}
