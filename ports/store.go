package ports

import (
	"context"
	"time"
)

// TokenStore is the durable key-value slot holding the session token
type TokenStore interface {
	// GetToken returns core.ErrTokenNotFound when no token is stored
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// NonceStore keeps issued nonces until they are consumed or expire
type NonceStore interface {
	PutNonce(ctx context.Context, nonce string, ttl time.Duration) error
	// ConsumeNonce reports whether the nonce was outstanding and removes it
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
}

// RevocationStore records signed-out token ids until they would have expired
type RevocationStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
