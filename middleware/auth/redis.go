package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps the token whitelist and blacklist in Redis under
// "<namespace>:<list>:<token id>" keys that expire with the token
type RedisTokenStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisTokenStore creates a Redis-backed token store
func NewRedisTokenStore(client redis.UniversalClient, namespace string) *RedisTokenStore {
	if namespace == "" {
		namespace = "danceflow"
	}
	return &RedisTokenStore{client: client, namespace: namespace}
}

// buildKey creates a namespaced key
func (r *RedisTokenStore) buildKey(list, tokenID string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, list, tokenID)
}

// Allow adds a token to the whitelist with TTL
func (r *RedisTokenStore) Allow(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.buildKey("whitelist", tokenID), "valid", ttl).Err(); err != nil {
		return fmt.Errorf("whitelisting token: %w", err)
	}
	return nil
}

// Revoke moves a token from the whitelist to the blacklist
func (r *RedisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.buildKey("blacklist", tokenID), "revoked", ttl)
		pipe.Del(ctx, r.buildKey("whitelist", tokenID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsValid checks that a token is whitelisted and not blacklisted
func (r *RedisTokenStore) IsValid(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.buildKey("blacklist", tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking blacklist: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	n, err = r.client.Exists(ctx, r.buildKey("whitelist", tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking whitelist: %w", err)
	}
	return n > 0, nil
}

// Close releases the Redis connection
func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}
