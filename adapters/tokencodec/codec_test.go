package tokencodec

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evaluatorToken = "header.eyJzdWIiOiIweEFiYzEyMyIsImV4cCI6OTk5OTk5OTk5OSwicm9sZSI6ImV2YWx1YXRvciJ9.sig"

func tokenWith(claims string) string {
	return "header." + base64.RawURLEncoding.EncodeToString([]byte(claims)) + ".sig"
}

func TestDecode(t *testing.T) {
	claims, err := Decode(evaluatorToken)
	require.NoError(t, err)

	assert.Equal(t, "0xAbc123", claims.Subject)
	assert.Equal(t, "evaluator", claims.Role)
	assert.Equal(t, int64(9999999999), claims.Expiry.Unix())
}

func TestDecodePadded(t *testing.T) {
	padded := "h." + base64.URLEncoding.EncodeToString([]byte(`{"sub":"0x1","exp":2}`)) + ".s"

	claims, err := Decode(padded)
	require.NoError(t, err)
	assert.Equal(t, "0x1", claims.Subject)
	assert.Empty(t, claims.Role)
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "a.b",
		"four segments":  "a.b.c.d",
		"invalid base64": "h.!!!.s",
		"invalid json":   tokenWith("{not json"),
		"array claims":   tokenWith(`["sub"]`),
		"missing exp":    tokenWith(`{"sub":"0x1"}`),
		"string exp":     tokenWith(`{"sub":"0x1","exp":"soon"}`),
		"numeric sub":    tokenWith(`{"sub":12,"exp":9999999999}`),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(token)
			assert.ErrorIs(t, err, core.ErrMalformedToken)
		})
	}
}

func TestIsExpired(t *testing.T) {
	claims := core.Claims{Expiry: time.Unix(1000000000, 0)}

	assert.False(t, IsExpired(claims, time.UnixMilli(999999999999)))
	assert.True(t, IsExpired(claims, time.UnixMilli(1000000000000)))
	assert.True(t, IsExpired(claims, time.UnixMilli(1000000000001)))
}

func TestCheck(t *testing.T) {
	now := time.Unix(1700000000, 0)

	_, err := Check(evaluatorToken, now)
	require.NoError(t, err)

	claims, err := Check(tokenWith(`{"sub":"0xAbc123","exp":1000000000,"role":"evaluator"}`), now)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
	assert.Equal(t, "0xAbc123", claims.Subject)

	_, err = Check("garbage", now)
	assert.ErrorIs(t, err, core.ErrMalformedToken)
}
