package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "kanban:idem:"

// RedisDeduper remembers which task an Idempotency-Key created so a retried
// create returns the same task instead of inserting it twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(key string) string {
	return idempotencyPrefix + key
}

// Claim records the key if it does not already exist. It returns true when
// the caller owns the key and should perform the create.
func (r *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(key), "", r.ttl).Result()
}

// Resolve stores the id of the task created under key.
func (r *RedisDeduper) Resolve(ctx context.Context, key, taskID string) error {
	return r.client.Set(ctx, r.key(key), taskID, r.ttl).Err()
}

// Lookup returns the task id created under key. An empty id with a nil error
// means the key is claimed but the create has not finished.
func (r *RedisDeduper) Lookup(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Release deletes a claimed key. It is used when the create fails so the
// caller may retry.
func (r *RedisDeduper) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
