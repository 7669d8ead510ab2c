package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func releaseMessage(t *testing.T, p orders.ReleaseRequestedPayload) kafka.Message {
	t.Helper()
	env, err := events.New("order-api", orders.EventReleaseRequested, p)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestHandleReleaseRequestedAppliesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[int64]int{42: 1})
	svc := &Service{Store: store, Dedup: &memDedup{seen: map[string]bool{}}, Log: zap.NewNop()}

	m := releaseMessage(t, orders.ReleaseRequestedPayload{OrderID: "o-1", ProductID: 42, Quantity: 2})
	require.NoError(t, svc.HandleReleaseRequested(ctx, m))
	require.NoError(t, svc.HandleReleaseRequested(ctx, m))

	n, _ := store.Available(ctx, 42)
	assert.Equal(t, 3, n)
}

type failingStore struct{ MemoryStore }

func (failingStore) Release(context.Context, int64, int) error { return errors.New("db down") }

func TestHandleReleaseRequestedForgetsClaimOnFailure(t *testing.T) {
	ctx := context.Background()
	dedup := &memDedup{seen: map[string]bool{}}
	svc := &Service{Store: &failingStore{}, Dedup: dedup, Log: zap.NewNop()}

	m := releaseMessage(t, orders.ReleaseRequestedPayload{OrderID: "o-1", ProductID: 42, Quantity: 2})
	assert.Error(t, svc.HandleReleaseRequested(ctx, m))
	assert.Empty(t, dedup.seen, "claim is cleared so redelivery retries")
}

func TestHandleReleaseRequestedSkipsPoison(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Store: NewMemoryStore(nil), Dedup: &memDedup{seen: map[string]bool{}}, Log: zap.NewNop()}

	assert.NoError(t, svc.HandleReleaseRequested(ctx, kafka.Message{Value: []byte("{")}))

	other, _ := events.New("order-api", orders.EventOrderCreated, orders.OrderCreatedPayload{})
	b, _ := json.Marshal(other)
	assert.NoError(t, svc.HandleReleaseRequested(ctx, kafka.Message{Value: b}))

	unknown := releaseMessage(t, orders.ReleaseRequestedPayload{ProductID: 9, Quantity: 1})
	assert.NoError(t, svc.HandleReleaseRequested(ctx, unknown))
}

func TestHandleReleaseRequestedDedupOutage(t *testing.T) {
	svc := &Service{Store: NewMemoryStore(map[int64]int{1: 0}), Dedup: &memDedup{err: errors.New("redis down")}, Log: zap.NewNop()}
	m := releaseMessage(t, orders.ReleaseRequestedPayload{ProductID: 1, Quantity: 1})
	assert.Error(t, svc.HandleReleaseRequested(context.Background(), m))
}
