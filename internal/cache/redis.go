package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "termmeta"

// Redis is a Cache backed by a Redis server. Entries are JSON encoded and
// expire after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) key(group string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", keyPrefix, group, id)
}

// Get returns the cached metadata for (group, id).
func (r *Redis) Get(ctx context.Context, group string, id int64) (map[string][]string, bool, error) {
	data, err := r.client.Get(ctx, r.key(group, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var meta map[string][]string
	if err := json.Unmarshal(data, &meta); err != nil {
		// A corrupt entry is a miss; the caller reloads and overwrites it.
		return nil, false, nil
	}
	return meta, true, nil
}

// Set stores meta for (group, id).
func (r *Redis) Set(ctx context.Context, group string, id int64, meta map[string][]string) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(group, id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes the entries for ids.
func (r *Redis) Delete(ctx context.Context, group string, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(group, id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Flush removes every entry of group using SCAN so large groups do not
// block the server.
func (r *Redis) Flush(ctx context.Context, group string) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:%s:*", keyPrefix, group), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
