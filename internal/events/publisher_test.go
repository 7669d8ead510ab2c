package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type sentMessage struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafka.Header
}

type fakeProducer struct {
	sent []sentMessage
	err  error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{topic, key, value, headers})
	return nil
}

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestNewStampsRealTime(t *testing.T) {
	before := time.Now().UTC()
	env, err := New("order-api", orders.EventOrderCancelled, orders.OrderCancelledPayload{OrderID: "o-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.Timestamp.IsZero())
	assert.False(t, env.Timestamp.Before(before))
	assert.Equal(t, "o-1", env.CorrelationID)

	_, err = New("order-api", "bad", make(chan int))
	assert.Error(t, err)
}

func TestKafkaPublisherRoutesByEventType(t *testing.T) {
	prod := &fakeProducer{}
	p := &KafkaPublisher{Producer: prod, Service: "order-api"}

	payload := orders.StatusChangedPayload{OrderID: "o-9", UserID: 3, OldStatus: orders.StatusPending, NewStatus: orders.StatusConfirmed}
	require.NoError(t, p.Publish(context.Background(), orders.EventOrderStatusChanged, payload))

	require.Len(t, prod.sent, 1)
	m := prod.sent[0]
	assert.Equal(t, orders.TopicOrderStatusChanged, m.topic)
	assert.Equal(t, []byte("o-9"), m.key)
	assert.Equal(t, orders.EventOrderStatusChanged, kafkax.Header(kafka.Message{Headers: m.headers}, kafkax.HeaderEventType))

	env, err := Decode(m.value)
	require.NoError(t, err)
	got, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRedisPublisherShape(t *testing.T) {
	rdb := &fakeRedis{}
	p := &RedisPublisher{Client: rdb}
	require.NoError(t, p.Publish(context.Background(), orders.EventOrderCreated, map[string]any{"order_id": "o-1"}))

	assert.Equal(t, ChannelEvents, rdb.channel)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rdb.message, &msg))
	assert.JSONEq(t, `"order.created"`, string(msg["type"]))
	assert.JSONEq(t, `{"order_id":"o-1"}`, string(msg["data"]))
	assert.NotEqual(t, `""`, string(msg["timestamp"]))
}

func TestFanoutJoinsErrors(t *testing.T) {
	boom := errors.New("kafka down")
	ok := &fakeProducer{}
	f := Fanout{
		&KafkaPublisher{Producer: &fakeProducer{err: boom}},
		&KafkaPublisher{Producer: ok},
		Discard{},
	}
	err := f.Publish(context.Background(), orders.EventOrderCreated, orders.OrderCreatedPayload{OrderID: "o"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.sent, 1, "one failing sink does not stop the others")
}
