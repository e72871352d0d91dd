// Package tokencodec reads the claims of a session token without verifying
// its signature. The session service remains the authority on validity; the
// client only needs to know whether a token is well formed and unexpired.
package tokencodec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/golang-jwt/jwt/v5"
)

// payload mirrors the claims segment of a session token
type payload struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claims of a three-segment token. Only the middle segment
// is decoded, so opaque headers and signatures are accepted as they are.
func Decode(token string) (core.Claims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return core.Claims{}, fmt.Errorf("expected 3 segments, got %d: %w", len(segments), core.ErrMalformedToken)
	}

	raw, err := parser.DecodeSegment(segments[1])
	if err != nil {
		return core.Claims{}, fmt.Errorf("failed to decode claims segment: %w", core.ErrMalformedToken)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Claims{}, fmt.Errorf("failed to parse claims: %w", core.ErrMalformedToken)
	}
	if p.ExpiresAt == nil {
		return core.Claims{}, fmt.Errorf("missing exp claim: %w", core.ErrMalformedToken)
	}

	return core.Claims{
		Subject: p.Subject,
		Role:    p.Role,
		Expiry:  p.ExpiresAt.Time,
		ID:      p.ID,
	}, nil
}

// IsExpired reports whether now has reached the expiry. The comparison is done
// in milliseconds against exp seconds scaled by 1000.
func IsExpired(claims core.Claims, now time.Time) bool {
	return now.UnixMilli() >= claims.Expiry.UnixMilli()
}

// Check decodes the token and rejects it when expired at now. The returned
// claims are populated for expired tokens too.
func Check(token string, now time.Time) (core.Claims, error) {
	claims, err := Decode(token)
	if err != nil {
		return core.Claims{}, err
	}
	if IsExpired(claims, now) {
		return claims, core.ErrTokenExpired
	}
	return claims, nil
}
