package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup records processed event ids per consuming service.
type Dedup struct {
	Client  redis.Cmdable
	Service string
}

func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.Client.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Result()
}

func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.Client.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
