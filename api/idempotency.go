package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeaderIdempotencyKey lets clients retry task creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	dedupeKeyPrefix = "idem"
	pendingMarker   = "-"
	maxKeyLength    = 200
)

// Deduper remembers which task an idempotency key produced.
type Deduper interface {
	// Claim reserves key. When the key is already taken it returns false and
	// the id of the task it produced, or "" while that request is in flight.
	Claim(ctx context.Context, key string) (bool, string, error)
	Complete(ctx context.Context, key, taskID string) error
	Release(ctx context.Context, key string) error
}

// RedisDeduper stores idempotency keys in Redis so all instances share them.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(key string) string {
	return dedupeKeyPrefix + ":" + key
}

func (r *RedisDeduper) Claim(ctx context.Context, key string) (bool, string, error) {
	added, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
	if err != nil || added {
		return added, "", err
	}
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; try once more.
		added, err = r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
		return added, "", err
	}
	if err != nil {
		return false, "", err
	}
	if val == pendingMarker {
		return false, "", nil
	}
	return false, val, nil
}

// Complete records the task created for key.
func (r *RedisDeduper) Complete(ctx context.Context, key, taskID string) error {
	return r.client.Set(ctx, r.key(key), taskID, r.ttl).Err()
}

// Release forgets key so the caller may retry after a failure.
func (r *RedisDeduper) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// idempotencyKey scopes the request's key to the caller. It returns "" when
// no key was sent and false when the key is unusable.
func idempotencyKey(raw, userID string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	if len(raw) > maxKeyLength {
		return "", false
	}
	if userID == "" {
		return raw, true
	}
	return userID + ":" + raw, true
}
