// Package redisxtest provides an in-memory stand-in for the handful of redis
// commands the service uses.
package redisxtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fake implements Get, Set, SetNX and Del. Any other command panics
// through the nil embedded interface. Expirations are ignored.
type Fake struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
	// Err, when set, fails every command.
	Err error
}

func NewFake() *Fake { return &Fake{data: map[string]string{}} }

func (f *Fake) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *Fake) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		cmd.SetErr(f.Err)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *Fake) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		cmd.SetErr(f.Err)
		return cmd
	}
	f.data[key] = str(value)
	cmd.SetVal("OK")
	return cmd
}

func (f *Fake) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "setnx", key)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		cmd.SetErr(f.Err)
		return cmd
	}
	if _, ok := f.data[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.data[key] = str(value)
	cmd.SetVal(true)
	return cmd
}

func (f *Fake) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		cmd.SetErr(f.Err)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
