package store

import (
	"context"
	"sync"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
)

// MemoryStore is an in-memory implementation of the token, nonce and
// revocation stores
type MemoryStore struct {
	mu                sync.RWMutex
	token             string
	nonces            map[string]time.Time
	invalidatedTokens map[string]time.Time
	now               func() time.Time
}

var (
	_ ports.TokenStore      = (*MemoryStore)(nil)
	_ ports.NonceStore      = (*MemoryStore)(nil)
	_ ports.RevocationStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:            make(map[string]time.Time),
		invalidatedTokens: make(map[string]time.Time),
		now:               time.Now,
	}
}

func (s *MemoryStore) GetToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", core.ErrTokenNotFound
	}
	return s.token, nil
}

func (s *MemoryStore) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	return nil
}

func (s *MemoryStore) DeleteToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	return nil
}

// PutNonce records an outstanding nonce
func (s *MemoryStore) PutNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.nonces[nonce] = s.now().Add(ttl)
	return nil
}

// ConsumeNonce removes the nonce and reports whether it was still valid
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.nonces[nonce]
	if !exists {
		return false, nil
	}
	delete(s.nonces, nonce)

	return s.now().Before(expiry), nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.invalidatedTokens[tokenID] = s.now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	// Check if the token invalidation has expired
	return s.now().Before(expiryTime), nil
}

// sweep drops lapsed entries; callers hold the write lock
func (s *MemoryStore) sweep() {
	now := s.now()
	for k, exp := range s.nonces {
		if !now.Before(exp) {
			delete(s.nonces, k)
		}
	}
	for k, exp := range s.invalidatedTokens {
		if !now.Before(exp) {
			delete(s.invalidatedTokens, k)
		}
	}
}
