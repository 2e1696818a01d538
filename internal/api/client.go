// Package api is the HTTP client for the Daily Digest backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxResponseBytes = 4 << 20
	defaultUserAgent = "dailydigest-client/1.0"
	requestIDHeader  = "X-Request-ID"
)

// TokenStore is where the client reads the bearer token from. A missing
// token reads as "".
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Client wraps net/http with the backend's base URL, bearer authentication
// and global 401 handling.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenStore
	log       logrus.FieldLogger
	userAgent string

	mu             sync.Mutex
	onUnauthorized func()
	revoked        string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithUnauthorizedHandler registers the callback fired after a 401 cleared the token.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL (e.g. "https://api.example.com").
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		tokens:    tokens,
		log:       logrus.StandardLogger(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "api_client")
	return c
}

// SetUnauthorizedHandler replaces the 401 callback. Surfaces that build the
// session after the client use this to close the loop.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Tokens exposes the token store backing this client.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// do sends r and decodes a successful JSON response into out (which may be nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     r.method,
		"path":       r.path,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Request failed")
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.WithError(err).Warn("Failed to read response body")
		return fmt.Errorf("%s %s: failed to read response: %w", r.method, r.path, err)
	}

	log = log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode >= http.StatusBadRequest {
		httpErr := newHTTPError(r.method, r.path, resp.StatusCode, payload)
		log.WithField("detail", httpErr.Detail).Debug("Request rejected")
		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized(ctx, token)
		}
		return httpErr
	}
	log.Debug("Request completed")

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.WithError(err).Error("Failed to decode response")
		return fmt.Errorf("%s %s: failed to decode response: %w", r.method, r.path, err)
	}
	return nil
}

// handleUnauthorized clears the token that was rejected and fires the
// handler once for it. Requests sent without a token have nothing to revoke,
// and a token that was already revoked or replaced is left alone.
func (c *Client) handleUnauthorized(ctx context.Context, sent string) {
	if sent == "" {
		return
	}

	c.mu.Lock()
	if sent == c.revoked {
		c.mu.Unlock()
		return
	}
	current, err := c.tokens.Token(ctx)
	if err != nil || current != sent {
		c.mu.Unlock()
		return
	}
	c.revoked = sent
	if err := c.tokens.ClearToken(context.WithoutCancel(ctx)); err != nil {
		c.log.WithError(err).Error("Failed to clear rejected token")
	}
	handler := c.onUnauthorized
	c.mu.Unlock()

	c.log.Info("Session rejected by server, token cleared")
	if handler != nil {
		handler()
	}
}
