// Package cache wraps the Redis client shared by the document sequencer and
// the event consumers.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/medflow/medflow-warehouse/pkg/config"
	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "warehouse:event:"

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// IdempotencyStore remembers processed event IDs for a while.
type IdempotencyStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

// NewIdempotencyStore creates a store; an empty prefix uses the default.
func NewIdempotencyStore(client redis.Cmdable, keyPrefix string, ttl time.Duration) *IdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &IdempotencyStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// MarkProcessed records eventID and reports whether it was new.
// SETNX keeps this atomic across service instances.
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// Forget removes eventID so a failed handler can be retried.
func (s *IdempotencyStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.keyPrefix+eventID).Err()
}
