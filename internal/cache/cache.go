// Package cache provides a best-effort key/value layer that degrades to a
// no-op when Redis is unavailable, so a cache outage never fails a request
// (spec section 4.10). Grounded on the Redis usage across the example pack;
// the degrade-to-no-op behavior generalizes the teacher's "log and continue"
// posture for non-critical side effects.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Layer is the CacheLayer contract (spec section 4.10).
type Layer interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type redisLayer struct {
	client *redis.Client
}

// New builds a Layer backed by Redis. A nil client degrades every call to a
// no-op, for environments running without a cache backend.
func New(client *redis.Client) Layer {
	return &redisLayer{client: client}
}

func (l *redisLayer) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if l.client == nil {
		return false, nil
	}

	data, err := l.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		log.Printf("cache: get %s failed, degrading to miss: %v", key, err)
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("cache: unmarshal %s failed, degrading to miss: %v", key, err)
		return false, nil
	}
	return true, nil
}

func (l *redisLayer) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if l.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}

	if err := l.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("cache: set %s failed, ignoring: %v", key, err)
	}
	return nil
}

func (l *redisLayer) Invalidate(ctx context.Context, key string) error {
	if l.client == nil {
		return nil
	}
	if err := l.client.Del(ctx, key).Err(); err != nil {
		log.Printf("cache: invalidate %s failed, ignoring: %v", key, err)
	}
	return nil
}
