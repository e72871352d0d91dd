package ports

import (
	"context"

	"github.com/carboncopyrefi/frf-front/core"
)

// VerifyResult is what the session service returns for an accepted signature
type VerifyResult struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// SessionService is the remote session service consumed by the client
type SessionService interface {
	RequestNonce(ctx context.Context) (core.Nonce, error)
	// Verify returns ok=false when the service rejects the message; err is
	// reserved for transport failures.
	Verify(ctx context.Context, message, signature string) (res VerifyResult, ok bool, err error)
	// FetchSession returns nil when there is no usable session
	FetchSession(ctx context.Context) (*core.RemoteSession, error)
	SignOut(ctx context.Context) (bool, error)
}
