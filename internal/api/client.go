// Package api is the HTTP adapter to the chat backend. It attaches the
// bearer token to every request, captures tokens returned in response
// bodies, and turns an authorization failure into a session expiry.
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
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/metrics"
)

const maxResponseBytes = 8 << 20

// Tokens is the bearer-token storage the client reads and writes.
type Tokens interface {
	Get() string
	Set(tok string)
	Clear()
}

// Expirer is told when the server rejects the session.
type Expirer interface {
	ExpireSession()
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithExpirer registers the session expiry hook run on 401.
func WithExpirer(e Expirer) ClientOption {
	return func(c *Client) { c.expirer = e }
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  Tokens
	expirer Expirer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:5001/api".
func New(baseURL string, tokens Tokens, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// keepToken skips token capture for endpoints whose body carries an
	// unrelated "token" field.
	keepToken bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokens.Get(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveHTTP(r.method, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.ObserveHTTP(r.method, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", r.method, r.path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Info("session rejected by server", zap.String("path", r.path))
		c.tokens.Clear()
		if c.expirer != nil {
			c.expirer.ExpireSession()
		}
		return ErrUnauthorized
	}

	if !r.keepToken {
		c.captureToken(data)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) captureToken(data []byte) {
	var probe struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.Token == "" {
		return
	}
	c.tokens.Set(probe.Token)
}

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var out T
	err := c.do(ctx, request{method: http.MethodGet, path: path, query: query}, &out)
	return out, err
}

func send[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	err := c.do(ctx, request{method: method, path: path, body: body}, &out)
	return out, err
}

func seg(id string) string {
	return url.PathEscape(id)
}
