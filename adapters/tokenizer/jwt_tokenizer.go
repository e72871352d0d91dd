package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
	"github.com/golang-jwt/jwt/v5"
)

const AudienceSession = "frf:session"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, issuer: issuer}
}

// SessionToToken converts a Session to a signed JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Address,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Role:    string(session.Role),
		ChainID: session.ChainID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession verifies a JWT and returns the session it carries
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession), jwt.WithIssuer(j.issuer), jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, core.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	// Validate token
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	// Extract claims
	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type: %w", core.ErrInvalidToken)
	}

	session := &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		Role:      core.CoerceRole(claims.Role),
		ChainID:   claims.ChainID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}
