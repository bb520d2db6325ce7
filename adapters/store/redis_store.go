package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore
const DefaultRedisPrefix = "artcertify:"

var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Redis implementation of the Store interface
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient, prefix string) ports.Store {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Get returns the value stored under key
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with an optional expiration
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in a single round trip
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefix + key
	}

	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// CompareAndDelete runs a Lua script so the read and delete are atomic
func (s *RedisStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := compareAndDeleteScript.Run(ctx, s.client, []string{s.prefix + key}, expected).Int()
	if err != nil {
		return false, fmt.Errorf("failed to compare and delete %s: %w", key, err)
	}
	return deleted == 1, nil
}
