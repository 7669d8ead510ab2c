package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

var ErrInFlight = errors.New("request with this idempotency key is still in flight")

// Idempotency guards order creation per (user, key). Begin claims the key;
// Complete records the order id; Abort frees the key after a failed run.
type Idempotency struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func (i *Idempotency) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return TTLIdempotency
}

// Begin returns ("", nil) when the caller now owns the key, the recorded
// order id when a previous run completed, or ErrInFlight.
func (i *Idempotency) Begin(ctx context.Context, userID int64, key string) (string, error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	ok, err := i.Client.SetNX(ctx, k, pendingMarker, i.ttl()).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	v, err := i.Client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as in flight, caller retries
		return "", ErrInFlight
	}
	if err != nil {
		return "", err
	}
	if v == pendingMarker {
		return "", ErrInFlight
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID int64, key, orderID string) error {
	return i.Client.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, i.ttl()).Err()
}

func (i *Idempotency) Abort(ctx context.Context, userID int64, key string) error {
	return i.Client.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Err()
}
