package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/carboncopyrefi/frf-front/adapters/tokencodec"
	"github.com/carboncopyrefi/frf-front/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestSessionRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), "frf")
	now := time.Now().Truncate(time.Second)
	session := &core.Session{
		ID:        "sid",
		Address:   "0xAbc123",
		Role:      core.RoleEvaluator,
		ChainID:   10,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}

	token, err := tk.SessionToToken(session)
	require.NoError(t, err)

	got, err := tk.TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Address, got.Address)
	assert.Equal(t, session.Role, got.Role)
	assert.Equal(t, session.ChainID, got.ChainID)
	assert.True(t, session.IssuedAt.Equal(got.IssuedAt))
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

	// The client codec reads the same claims without the key
	claims, err := tokencodec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "0xAbc123", claims.Subject)
	assert.Equal(t, "evaluator", claims.Role)
	assert.Equal(t, "sid", claims.ID)
	assert.Equal(t, session.ExpiresAt.Unix(), claims.Expiry.Unix())
}

func TestTokenToSessionRejects(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), "frf")
	now := time.Now()

	expired, err := tk.SessionToToken(&core.Session{ID: "a", Address: "0x1", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = tk.TokenToSession(expired)
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	other, err := NewJWTTokenizer(newKey(t), "frf").SessionToToken(&core.Session{ID: "b", Address: "0x1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = tk.TokenToSession(other)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tk.TokenToSession("header.eyJzdWIiOiIweEFiYzEyMyIsImV4cCI6OTk5OTk5OTk5OSwicm9sZSI6ImV2YWx1YXRvciJ9.sig")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
