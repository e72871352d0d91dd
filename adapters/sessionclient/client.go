// Package sessionclient talks to the remote session service. Every request
// carries the cookie jar so the cookie-backed session keeps working for
// clients that never persisted a token.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/ports"
)

// maxBody bounds how much of a response is read
const maxBody = 1 << 20

// Client is an HTTP implementation of ports.SessionService
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.SessionService = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// and a copy without a cookie jar is given its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// New creates a client for the session service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	resp.Body.Close()
}

// RequestNonce fetches a fresh single-use nonce
func (c *Client) RequestNonce(ctx context.Context) (core.Nonce, error) {
	resp, err := c.do(ctx, http.MethodPost, "/nonce", nil)
	if err != nil {
		return "", &core.NetworkError{Op: "nonce", Err: err}
	}
	defer drain(resp)

	if !ok(resp) {
		return "", &core.NetworkError{Op: "nonce", StatusCode: resp.StatusCode}
	}

	var out struct {
		Nonce string `json:"nonce"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return "", &core.NetworkError{Op: "nonce", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.Nonce == "" {
		return "", &core.NetworkError{Op: "nonce", Err: fmt.Errorf("empty nonce")}
	}
	return core.Nonce(out.Nonce), nil
}

// Verify submits a signed message. A non-2xx answer or an unusable body is a
// rejection, not an error.
func (c *Client) Verify(ctx context.Context, message, signature string) (ports.VerifyResult, bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/verify", map[string]string{
		"message":   message,
		"signature": signature,
	})
	if err != nil {
		return ports.VerifyResult{}, false, &core.NetworkError{Op: "verify", Err: err}
	}
	defer drain(resp)

	if !ok(resp) {
		return ports.VerifyResult{}, false, nil
	}

	var out ports.VerifyResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil || out.Token == "" {
		return ports.VerifyResult{}, false, nil
	}
	return out, true, nil
}

// FetchSession returns the cookie-backed session, or nil when there is none
// or the body does not have the expected shape
func (c *Client) FetchSession(ctx context.Context) (*core.RemoteSession, error) {
	resp, err := c.do(ctx, http.MethodGet, "/session", nil)
	if err != nil {
		return nil, &core.NetworkError{Op: "session", Err: err}
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNoContent || !ok(resp) {
		return nil, nil
	}

	var raw map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&raw); err != nil {
		return nil, nil
	}
	address, isString := raw["address"].(string)
	chainID, isNumber := raw["chainId"].(float64)
	if !isString || !isNumber {
		return nil, nil
	}
	return &core.RemoteSession{Address: address, ChainID: int64(chainID)}, nil
}

// SignOut ends the remote session. Success means the service answered with
// an empty object.
func (c *Client) SignOut(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/signout", nil)
	if err != nil {
		return false, &core.NetworkError{Op: "signout", Err: err}
	}
	defer drain(resp)

	if !ok(resp) {
		return false, &core.NetworkError{Op: "signout", StatusCode: resp.StatusCode}
	}

	var out map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return false, &core.NetworkError{Op: "signout", Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return out != nil && len(out) == 0, nil
}
