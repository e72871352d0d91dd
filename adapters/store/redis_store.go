package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/redis/go-redis/v9"
)

// TokenKey is the fixed key holding the session token
const TokenKey = "siwe-jwt"

// RedisStore is a Redis implementation of the token, nonce and revocation stores
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ ports.TokenStore      = (*RedisStore)(nil)
	_ ports.NonceStore      = (*RedisStore)(nil)
	_ ports.RevocationStore = (*RedisStore)(nil)
)

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "frf:",
	}
}

func (s *RedisStore) GetToken(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+TokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return val, nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.prefix+TokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteToken(ctx context.Context) error {
	if err := s.client.Del(ctx, s.prefix+TokenKey).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// PutNonce stores an outstanding nonce with expiration
func (s *RedisStore) PutNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+"nonce:"+nonce, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// ConsumeNonce deletes the nonce; only the caller that removed it may use it
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefix+"nonce:"+nonce).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return n > 0, nil
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + "invalidated:" + tokenID

	// Set key with expiration
	if err := s.client.Set(ctx, key, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + "invalidated:" + tokenID

	// Check if key exists
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}
