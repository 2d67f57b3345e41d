package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type redisBackend struct {
	redisClient *redis.Client
	key         string
}

// NewRedisBackend keeps the mapping in one Redis hash, e.g. mirror:cache:categories.
func NewRedisBackend(redisClient *redis.Client, keyPrefix, kind string) Backend {
	return &redisBackend{
		redisClient: redisClient,
		key:         keyPrefix + kind,
	}
}

func (b *redisBackend) Load(ctx context.Context) (map[string]int, error) {
	values, err := b.redisClient.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.key, err)
	}

	entries := make(map[string]int, len(values))
	for name, raw := range values {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse id of %q in %s: %w", name, b.key, err)
		}
		entries[name] = id
	}
	return entries, nil
}

// Save replaces the whole hash so names dropped from entries disappear too.
func (b *redisBackend) Save(ctx context.Context, entries map[string]int) error {
	values := make(map[string]interface{}, len(entries))
	for name, id := range entries {
		values[name] = id
	}

	_, err := b.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(values) > 0 {
			pipe.HSet(ctx, b.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", b.key, err)
	}
	return nil
}
