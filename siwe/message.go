// Package siwe builds and reads Sign-In With Ethereum (EIP-4361) messages.
package siwe

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
)

const (
	// Version is the only message version defined by EIP-4361
	Version = "1"

	// DefaultStatement is the consent text shown to participants
	DefaultStatement = "Welcome to the Funding Readiness Framework by CARBON Copy! Please sign this message"

	headerSuffix = " wants you to sign in with your Ethereum account:"
)

// Message is a parsed or assembled sign-in message
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// String formats the message exactly as it is handed to the wallet
func (m *Message) String() string {
	var b strings.Builder

	b.WriteString(m.Domain + headerSuffix + "\n")
	b.WriteString(m.Address + "\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement + "\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339Nano))
	if m.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", m.ExpirationTime.UTC().Format(time.RFC3339Nano))
	}
	if m.NotBefore != nil {
		fmt.Fprintf(&b, "\nNot Before: %s", m.NotBefore.UTC().Format(time.RFC3339Nano))
	}
	if m.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", m.RequestID)
	}
	if len(m.Resources) > 0 {
		b.WriteString("\nResources:")
		for _, r := range m.Resources {
			b.WriteString("\n- " + r)
		}
	}
	return b.String()
}

// Params are the message parameters derived from the application origin
type Params struct {
	Domain    string
	URI       string
	Chains    []int64
	Statement string
}

// MessageParams derives the signing domain and URI from the app origin
func MessageParams(origin string, chains []int64, statement string) (Params, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return Params{}, fmt.Errorf("invalid origin %q: %w", origin, core.ErrInvalidMessage)
	}
	return Params{
		Domain:    u.Host,
		URI:       u.Scheme + "://" + u.Host,
		Chains:    chains,
		Statement: statement,
	}, nil
}

// Format assembles the signable message for an address and nonce. The chain
// reference of a namespaced address wins over the first configured chain.
func Format(p Params, address string, nonce core.Nonce, issuedAt time.Time) (string, error) {
	if nonce == "" {
		return "", fmt.Errorf("empty nonce: %w", core.ErrInvalidMessage)
	}

	chainRef, account := splitAccount(address)
	var chainID int64
	switch {
	case chainRef != "":
		id, err := strconv.ParseInt(chainRef, 10, 64)
		if err != nil {
			return "", fmt.Errorf("chain reference %q: %w", chainRef, core.ErrInvalidMessage)
		}
		chainID = id
	case len(p.Chains) > 0:
		chainID = p.Chains[0]
	default:
		return "", fmt.Errorf("no chains configured: %w", core.ErrInvalidMessage)
	}

	m := Message{
		Domain:    p.Domain,
		Address:   account,
		Statement: p.Statement,
		URI:       p.URI,
		Version:   Version,
		ChainID:   chainID,
		Nonce:     string(nonce),
		IssuedAt:  issuedAt,
	}
	return m.String(), nil
}

// Builder produces sign-in messages for one application origin
type Builder struct {
	origin    string
	statement string
	now       func() time.Time
}

// NewBuilder creates a builder for origin; an empty statement selects the
// default consent text
func NewBuilder(origin, statement string) *Builder {
	if statement == "" {
		statement = DefaultStatement
	}
	return &Builder{origin: origin, statement: statement, now: time.Now}
}

// BuildMessage normalizes the address and formats the message to be signed
func (b *Builder) BuildMessage(address string, nonce core.Nonce, chains []int64) (string, error) {
	params, err := MessageParams(b.origin, chains, b.statement)
	if err != nil {
		return "", err
	}
	return Format(params, NormalizeAddress(address), nonce, b.now())
}

// ParseMessage reads a message produced by Message.String
func ParseMessage(raw string) (*Message, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf(format+": %w", append(args, core.ErrInvalidMessage)...)
	}

	lines := []string{}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) < 8 {
		return nil, invalid("message too short")
	}

	m := &Message{}
	header, ok := strings.CutSuffix(lines[0], headerSuffix)
	if !ok || header == "" {
		return nil, invalid("bad header line")
	}
	m.Domain = header
	m.Address = lines[1]
	if lines[2] != "" {
		return nil, invalid("expected blank line after address")
	}

	i := 3
	if lines[i] != "" {
		m.Statement = lines[i]
		i++
	}
	if i >= len(lines) || lines[i] != "" {
		return nil, invalid("expected blank line after statement")
	}
	i++

	fields := map[string]string{}
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "Resources:" {
			for i++; i < len(lines); i++ {
				r, ok := strings.CutPrefix(lines[i], "- ")
				if !ok {
					return nil, invalid("bad resource line %q", lines[i])
				}
				m.Resources = append(m.Resources, r)
			}
			break
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, invalid("bad field line %q", line)
		}
		fields[key] = value
	}

	for _, key := range []string{"URI", "Version", "Chain ID", "Nonce", "Issued At"} {
		if fields[key] == "" {
			return nil, invalid("missing %s", key)
		}
	}

	var err error
	m.URI = fields["URI"]
	m.Version = fields["Version"]
	m.Nonce = fields["Nonce"]
	m.RequestID = fields["Request ID"]
	if m.ChainID, err = strconv.ParseInt(fields["Chain ID"], 10, 64); err != nil {
		return nil, invalid("bad chain id")
	}
	if m.IssuedAt, err = time.Parse(time.RFC3339Nano, fields["Issued At"]); err != nil {
		return nil, invalid("bad issued at")
	}
	if v := fields["Expiration Time"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, invalid("bad expiration time")
		}
		m.ExpirationTime = &t
	}
	if v := fields["Not Before"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, invalid("bad not before")
		}
		m.NotBefore = &t
	}
	if m.Version != Version {
		return nil, invalid("unsupported version %q", m.Version)
	}
	return m, nil
}
