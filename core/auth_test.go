package core

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceRole(t *testing.T) {
	assert.Equal(t, RoleEvaluator, CoerceRole("evaluator"))
	assert.Equal(t, RoleUser, CoerceRole("user"))
	assert.Equal(t, RoleUser, CoerceRole(""))
	assert.Equal(t, RoleUser, CoerceRole("Evaluator"))
	assert.Equal(t, RoleUser, CoerceRole("admin"))
}

func TestAuthStateNormalize(t *testing.T) {
	assert.Equal(t, Unauthenticated, AuthState{Authenticated: false, Role: RoleEvaluator}.Normalize())
	assert.Equal(t, AuthState{Authenticated: true, Role: RoleUser}, AuthState{Authenticated: true}.Normalize())
	assert.Equal(t, AuthState{Authenticated: true, Role: RoleEvaluator}, AuthState{Authenticated: true, Role: RoleEvaluator}.Normalize())
}

func TestSameAccount(t *testing.T) {
	assert.True(t, SameAccount("0xabc", "0xABC"))
	assert.True(t, SameAccount("eip155:10:0xAbC", "0xabc"))
	assert.False(t, SameAccount("0xabc", "0xabd"))
}

func TestNetworkError(t *testing.T) {
	err := &NetworkError{Op: "nonce", StatusCode: 500}
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, "nonce: unexpected status 500", err.Error())

	err = &NetworkError{Op: "verify", Err: io.ErrUnexpectedEOF}
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestAuthStateJSON(t *testing.T) {
	b, err := json.Marshal(Unauthenticated)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"authenticated":false,"role":null}`, string(b))

	b, err = json.Marshal(AuthState{Authenticated: true, Role: RoleEvaluator})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"authenticated":true,"role":"evaluator"}`, string(b))

	var st AuthState
	assert.NoError(t, json.Unmarshal([]byte(`{"authenticated":false,"role":null}`), &st))
	assert.Equal(t, Unauthenticated, st)
}
