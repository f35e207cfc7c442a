package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/callerid-relay/internal/model"
)

const (
	// StreamName is the name of the lookups stream.
	StreamName = "LOOKUPS"

	// SubjectPrefix is the prefix for all lookup subjects.
	SubjectPrefix = "lookup"
)

// Subject returns the subject a lookup event is published on.
func Subject(status model.Status) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, status)
}

type streamPublisher interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher writes lookup events to JetStream.
type Publisher struct {
	js streamPublisher
}

// NewPublisher creates a publisher over client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{js: client.JetStream()}
}

// StreamConfig is the configuration of the lookups stream. Events are
// operational telemetry and are kept in memory for a day.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxBytes:    256 * 1024 * 1024,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
		Description: "Lookup outcomes",
	}
}

// EnsureStream creates the lookups stream if it does not exist.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	if _, err := p.js.CreateStream(ctx, StreamConfig()); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish publishes an event. The event id doubles as the JetStream
// message id so retried publishes are deduplicated.
func (p *Publisher) Publish(ctx context.Context, event *model.LookupEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, Subject(event.Status), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Noop discards events. It is used when NATS is not configured.
type Noop struct{}

// Publish implements relay.EventSink.
func (Noop) Publish(context.Context, *model.LookupEvent) error {
	return nil
}
