package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken        = errors.New("malformed token")
	ErrTokenExpired          = errors.New("token has expired")
	ErrNetwork               = errors.New("network error")
	ErrVerificationRejected  = errors.New("verification rejected")
	ErrSignOutPartialFailure = errors.New("remote sign-out failed")
	ErrStaleAttempt          = errors.New("sign-in attempt superseded")
	ErrNotConnected          = errors.New("wallet not connected")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrForbidden             = errors.New("role not permitted")
	ErrTokenNotFound         = errors.New("token not found")

	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrInvalidMessage   = errors.New("invalid sign-in message")
	ErrInvalidAddress   = errors.New("invalid ethereum address")
)

// NetworkError describes a failed call to the session service
type NetworkError struct {
	Op         string // nonce, verify, session or signout
	StatusCode int    // 0 when the transport itself failed
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}
