package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNoSnapshot is returned by Backend.Load when nothing was persisted yet.
var ErrNoSnapshot = errors.New("store: no persisted snapshot")

// Backend stores encoded snapshots.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// RedisBackend keeps the snapshot under a single key.
type RedisBackend struct {
	rdb redis.Cmdable
	key string
}

func NewRedisBackend(rdb redis.Cmdable, keyPrefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, key: keyPrefix + ":state"}
}

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := b.rdb.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, data []byte) error {
	if err := b.rdb.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}
