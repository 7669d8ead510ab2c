package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// Publisher delivers domain events best-effort. Callers log a returned error
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type kafkaProducer interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// KafkaPublisher writes envelopes to the per-event topic, keyed by order id.
type KafkaPublisher struct {
	Producer kafkaProducer
	Service  string
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := New(p.Service, eventType, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var key []byte
	if env.CorrelationID != "" {
		key = []byte(env.CorrelationID)
	}
	headers := kafkax.InjectTrace(ctx, kafkax.EventHeaders(eventType, env.Version))
	return p.Producer.Publish(ctx, orders.TopicFor(eventType), key, b, headers...)
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// ChannelEvents is the pub/sub channel subscribers listen on.
const ChannelEvents = "events"

// RedisMessage is the pub/sub shape: {type, data, timestamp}.
type RedisMessage struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type RedisPublisher struct {
	Client  redisPublisher
	Channel string
	Service string
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := New(p.Service, eventType, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(RedisMessage{
		EventID:   env.EventID,
		Type:      env.Type,
		Data:      env.Payload,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return err
	}
	ch := p.Channel
	if ch == "" {
		ch = ChannelEvents
	}
	if err := p.Client.Publish(ctx, ch, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", eventType, err)
	}
	return nil
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, eventType string, payload any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, eventType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }
