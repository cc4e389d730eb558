package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
)

const (
	TopicUserEvents = "user_events"
	TopicMailOutbox = "mail_outbox"
)

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type Producer struct {
	writer  *kafka.Writer
	backoff func() retry.Backoff
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
		},
	}
}

// PublishEvent JSON-encodes event and writes it keyed by key, retrying
// transient broker errors.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}

	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return retry.RetryableError(fmt.Errorf("kafka: write failed: %w", err))
		}
		return nil
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, string, string, any) error { return nil }
