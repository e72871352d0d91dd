package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/carboncopyrefi/frf-front/siwe"
	"github.com/google/uuid"
)

// SessionConfig tunes the session service
type SessionConfig struct {
	// Domains accepted in sign-in messages; empty accepts any
	Domains []string
	// Evaluators are addresses granted the evaluator role
	Evaluators []string
	NonceTTL   time.Duration
	TokenTTL   time.Duration
}

// SessionService issues and checks sessions for signed SIWE messages
type SessionService struct {
	tokenizer ports.Tokenizer
	nonces    ports.NonceStore
	revoked   ports.RevocationStore
	eventPub  ports.EventPublisher

	domains    []string
	evaluators map[string]bool
	nonceTTL   time.Duration
	tokenTTL   time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(
	tokenizer ports.Tokenizer,
	nonces ports.NonceStore,
	revoked ports.RevocationStore,
	eventPub ports.EventPublisher,
	cfg SessionConfig,
	log *slog.Logger,
) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	s := &SessionService{
		tokenizer:  tokenizer,
		nonces:     nonces,
		revoked:    revoked,
		eventPub:   eventPub,
		domains:    cfg.Domains,
		evaluators: make(map[string]bool, len(cfg.Evaluators)),
		nonceTTL:   cfg.NonceTTL,
		tokenTTL:   cfg.TokenTTL,
		now:        time.Now,
		log:        log,
	}
	if s.nonceTTL == 0 {
		s.nonceTTL = 5 * time.Minute
	}
	if s.tokenTTL == 0 {
		s.tokenTTL = 24 * time.Hour
	}
	for _, a := range cfg.Evaluators {
		s.evaluators[strings.ToLower(a)] = true
	}
	return s
}

// CreateNonce generates a nonce that can be used by exactly one verify call
func (s *SessionService) CreateNonce(ctx context.Context) (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	if err := s.nonces.PutNonce(ctx, nonce, s.nonceTTL); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Verify checks a signed message and issues a session token. The nonce is
// consumed before the signature is checked, so a rejected message burns it.
func (s *SessionService) Verify(ctx context.Context, message, signature string) (string, *core.Session, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return "", nil, err
	}
	if len(s.domains) > 0 && !slices.Contains(s.domains, msg.Domain) {
		return "", nil, fmt.Errorf("domain %q not accepted: %w", msg.Domain, core.ErrInvalidMessage)
	}

	ok, err := s.nonces.ConsumeNonce(ctx, msg.Nonce)
	if err != nil {
		return "", nil, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		return "", nil, core.ErrInvalidNonce
	}

	now := s.now()
	if msg.ExpirationTime != nil && !now.Before(*msg.ExpirationTime) {
		return "", nil, fmt.Errorf("message expired: %w", core.ErrInvalidMessage)
	}
	if msg.NotBefore != nil && now.Before(*msg.NotBefore) {
		return "", nil, fmt.Errorf("message not yet valid: %w", core.ErrInvalidMessage)
	}

	if _, err := siwe.VerifySignature(message, signature); err != nil {
		return "", nil, fmt.Errorf("signature verification failed: %w", err)
	}

	address, err := siwe.ChecksumAddress(msg.Address)
	if err != nil {
		return "", nil, err
	}

	role := core.RoleUser
	if s.evaluators[strings.ToLower(address)] {
		role = core.RoleEvaluator
	}

	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		Role:      role,
		ChainID:   msg.ChainID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create token: %w", err)
	}

	s.log.Info("session issued", "address", address, "role", string(role), "session_id", session.ID)
	return token, session, nil
}

// Session validates a token and returns its session
func (s *SessionService) Session(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	// Check if the token has been invalidated
	invalidated, err := s.revoked.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// SignOut invalidates a session token for the rest of its lifetime
func (s *SessionService) SignOut(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return fmt.Errorf("invalid session token: %w", err)
	}

	remainingTime := session.ExpiresAt.Sub(s.now())
	if remainingTime <= 0 {
		return nil
	}

	if err := s.revoked.InvalidateToken(ctx, session.ID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The token is already invalidated in the store, which is the critical part
	if err := s.eventPub.PublishSignOut(ctx, session.Address, session.ID); err != nil {
		s.log.Warn("failed to publish sign-out event", "error", err)
	}

	return nil
}
