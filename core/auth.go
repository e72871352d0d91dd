package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the privilege level carried by a session token
type Role string

const (
	// RoleNone is the role of an unauthenticated participant
	RoleNone Role = ""
	// RoleUser may submit project data
	RoleUser Role = "user"
	// RoleEvaluator may evaluate submissions
	RoleEvaluator Role = "evaluator"
)

// MarshalJSON encodes RoleNone as null
func (r Role) MarshalJSON() ([]byte, error) {
	if r == RoleNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON decodes null as RoleNone
func (r *Role) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = RoleNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = Role(s)
	return nil
}

// CoerceRole maps a raw role claim onto a known role. Anything other than the
// literal evaluator marker becomes RoleUser.
func CoerceRole(raw string) Role {
	if raw == string(RoleEvaluator) {
		return RoleEvaluator
	}
	return RoleUser
}

// AuthState is the process-wide authentication state exposed to consumers
type AuthState struct {
	Authenticated bool `json:"authenticated"`
	Role          Role `json:"role"`
}

// Unauthenticated is the zero state every process starts in
var Unauthenticated = AuthState{}

// Normalize enforces that an unauthenticated state never carries a role
func (s AuthState) Normalize() AuthState {
	if !s.Authenticated {
		return Unauthenticated
	}
	if s.Role != RoleEvaluator {
		s.Role = RoleUser
	}
	return s
}

// Claims are the fields of a session token the client cares about
type Claims struct {
	Subject string    // Wallet address of the token holder
	Role    string    // Raw role claim, may be empty
	Expiry  time.Time // Expiry, second precision
	ID      string    // Token identifier, may be empty
}

// Nonce is a single-use server-issued value embedded in a sign-in message
type Nonce string

// RemoteSession is the cookie-backed session reported by the session service
type RemoteSession struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

// WalletSignal is a sample of the external wallet connection
type WalletSignal struct {
	Connected bool
	Address   string
}

// SameAccount reports whether two addresses name the same account. Namespaced
// forms (namespace:chainRef:address) compare on their trailing component.
func SameAccount(a, b string) bool {
	return strings.EqualFold(trailing(a), trailing(b))
}

func trailing(address string) string {
	if i := strings.LastIndexByte(address, ':'); i >= 0 {
		return address[i+1:]
	}
	return address
}

// Session is a session issued by the session service after a verified sign-in
type Session struct {
	ID        string    // Unique session identifier, used as the token jti
	Address   string    // Checksummed address of the signer
	Role      Role      // Role granted to the address
	ChainID   int64     // Chain the message was signed for
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session token expires
}
