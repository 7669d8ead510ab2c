package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// flakyStore fails the first n releases per product.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures map[int64]int
	calls    map[int64]int
}

func (f *flakyStore) Release(ctx context.Context, productID int64, qty int) error {
	f.mu.Lock()
	f.calls[productID]++
	if f.failures[productID] > 0 {
		f.failures[productID]--
		f.mu.Unlock()
		return errors.New("inventory service: 503")
	}
	f.mu.Unlock()
	return f.MemoryStore.Release(ctx, productID, qty)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) RequestRelease(ctx context.Context, req orders.ReleaseRequestedPayload) error {
	return m.Called(req).Error(0)
}

func newReleaser(store Store, rec Reconciler) *Releaser {
	return &Releaser{
		Store:           store,
		Reconciler:      rec,
		Log:             zap.NewNop(),
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestReleaseAllRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{
		MemoryStore: NewMemoryStore(map[int64]int{1: 0, 2: 0}),
		failures:    map[int64]int{1: 2},
		calls:       map[int64]int{},
	}
	rec := &mockReconciler{}
	r := newReleaser(store, rec)

	pending, err := r.ReleaseAll(ctx, "o-1", ReasonOrderCancelled, []orders.ItemQty{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}})
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, 3, store.calls[1])

	a, _ := store.Available(ctx, 1)
	b, _ := store.Available(ctx, 2)
	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b)
	rec.AssertNotCalled(t, "RequestRelease", mock.Anything)
}

func TestReleaseAllHandsOffExhaustedLines(t *testing.T) {
	store := &flakyStore{
		MemoryStore: NewMemoryStore(map[int64]int{1: 0}),
		failures:    map[int64]int{1: 10},
		calls:       map[int64]int{},
	}
	rec := &mockReconciler{}
	want := orders.ReleaseRequestedPayload{OrderID: "o-1", ProductID: 1, Quantity: 4, Reason: ReasonOrderCancelled}
	rec.On("RequestRelease", want).Return(nil).Once()

	r := newReleaser(store, rec)
	pending, err := r.ReleaseAll(context.Background(), "o-1", ReasonOrderCancelled, []orders.ItemQty{{ProductID: 1, Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, []orders.ItemQty{{ProductID: 1, Quantity: 4}}, pending)
	assert.Equal(t, 3, store.calls[1])
	rec.AssertExpectations(t)
}

func TestReleaseAllReportsLostLines(t *testing.T) {
	store := &flakyStore{
		MemoryStore: NewMemoryStore(map[int64]int{1: 0}),
		failures:    map[int64]int{1: 10},
		calls:       map[int64]int{},
	}
	rec := &mockReconciler{}
	rec.On("RequestRelease", mock.Anything).Return(errors.New("kafka down"))

	pending, err := newReleaser(store, rec).ReleaseAll(context.Background(), "o-1", ReasonSagaCompensation,
		[]orders.ItemQty{{ProductID: 1, Quantity: 1}})
	assert.Empty(t, pending)
	assert.ErrorContains(t, err, "kafka down")

	// unknown products are never retried nor handed off
	pending, err = newReleaser(NewMemoryStore(nil), rec).ReleaseAll(context.Background(), "o-2", ReasonSagaCompensation,
		[]orders.ItemQty{{ProductID: 5, Quantity: 1}})
	assert.Empty(t, pending)
	assert.ErrorIs(t, err, ErrUnknownProduct)
	rec.AssertNumberOfCalls(t, "RequestRelease", 1)
}

type capturingProducer struct {
	topic string
	key   []byte
	value []byte
}

func (c *capturingProducer) Send(_ context.Context, topic string, key, value []byte, _ ...kafka.Header) error {
	c.topic, c.key, c.value = topic, key, value
	return nil
}

func TestKafkaReconcilerWritesEnvelope(t *testing.T) {
	prod := &capturingProducer{}
	k := &KafkaReconciler{Producer: prod, Service: "order-api"}
	req := orders.ReleaseRequestedPayload{OrderID: "o-1", ProductID: 42, Quantity: 2, Reason: ReasonOrderCancelled}
	require.NoError(t, k.RequestRelease(context.Background(), req))

	assert.Equal(t, orders.TopicReleaseRequested, prod.topic)
	assert.Equal(t, []byte("42"), prod.key)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(prod.value, &env))
	assert.Equal(t, orders.EventReleaseRequested, env.Type)
	assert.Equal(t, "order-api", env.Producer)
}
