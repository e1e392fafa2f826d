package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/branchledger/pkg/db/models"
	"github.com/angelmondragon/branchledger/pkg/outbox/registry"
)

const publishTimeout = 15 * time.Second

type publisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// topicSender keeps one ordered publisher per topic for the process lifetime.
type topicSender struct {
	source publisherSource

	mu   sync.Mutex
	open map[string]*gcppubsub.Publisher
}

func newTopicSender(source publisherSource) *topicSender {
	return &topicSender{source: source, open: map[string]*gcppubsub.Publisher{}}
}

func (s *topicSender) Ping(ctx context.Context) error {
	return s.source.Ping(ctx)
}

func (s *topicSender) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.open[topic]; ok {
		return p
	}
	p := s.source.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	s.open[topic] = p
	return p
}

func (s *topicSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	p := s.publisher(topic)
	if p == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %q", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.Publish(ctx, msg).Get(ctx); err != nil {
		// a failed ordered publish pauses its key until resumed
		p.ResumePublish(msg.OrderingKey)
		return err
	}
	return nil
}

// Stop flushes and stops every publisher opened so far.
func (s *topicSender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.open {
		p.Stop()
		delete(s.open, topic)
	}
}

// buildMessage keys messages by entry so consumers see one entry's events in
// commit order.
func buildMessage(row models.OutboxEvent, resolved *registry.Resolved) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: row.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
		},
	}
}
