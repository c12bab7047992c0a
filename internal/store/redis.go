package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps tokens in redis, shared by every run using the same prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client; keys are prefix + key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

// Load returns the token saved under key, or ErrNotFound once redis has
// expired it.
func (s *RedisStore) Load(ctx context.Context, key string) (AccessToken, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return AccessToken{}, ErrNotFound
	}
	if err != nil {
		return AccessToken{}, fmt.Errorf("redis get: %w", err)
	}

	var tok AccessToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return AccessToken{}, fmt.Errorf("decode stored token: %w", err)
	}
	return tok, nil
}

// Save stores tok with a redis expiry matching the token's lifetime.
func (s *RedisStore) Save(ctx context.Context, key string, tok AccessToken) error {
	ttl := time.Duration(tok.TTLSeconds) * time.Second
	if ttl <= 0 {
		return s.client.Del(ctx, s.prefix+key).Err()
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
