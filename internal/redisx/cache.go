package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// OrderCache keeps short-lived JSON snapshots of orders in front of the ledger.
type OrderCache struct {
	Client redis.Cmdable
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (*orders.Order, bool, error) {
	b, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, false, fmt.Errorf("decode cached order: %w", err)
	}
	return &o, true, nil
}

func (c *OrderCache) Put(ctx context.Context, o *orders.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.Client.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err()
}
