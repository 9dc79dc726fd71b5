// Package client is the HTTP transport to the index store. It speaks
// the bulk REST protocol: NDJSON request bodies, JSON responses with
// per-item results. Interpretation of those results belongs to the
// bulk package; this layer only moves bytes and classifies transport
// errors.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fscrawl/fscrawl/internal/bulk"
)

// Config holds the destination settings.
type Config struct {
	// URL is the base URL of the store, e.g. http://localhost:9200.
	URL string

	// Username and Password enable basic auth when both are set.
	Username string
	Password string

	// Timeout bounds each bulk request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single bulk round trip.
const DefaultTimeout = 2 * time.Minute

// Error is a transport-level failure with enough classification for
// the retry coordinator to act on without string matching.
type Error struct {
	Kind bulk.TransportFailure
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is a thin bulk-protocol client. It owns its http.Client and
// is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	http     *http.Client
}

// New validates the destination URL and builds a client. No network
// traffic happens until the first request.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid destination url %q", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Ping checks that the destination answers at all. Used at run start
// so a misconfigured URL fails fast instead of after a full walk.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classify("ping", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &Error{Kind: bulk.TransportAuth, Op: "ping",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &Error{Kind: bulk.TransportProtocol, Op: "ping",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// Bulk submits one encoded batch and decodes the response envelope.
// The payload must already be NDJSON; the item count inside the
// response is not checked here.
func (c *Client) Bulk(ctx context.Context, payload []byte) (*bulk.RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/_bulk", strings.NewReader(string(payload)))
	if err != nil {
		return nil, &Error{Kind: bulk.TransportProtocol, Op: "bulk",
			Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify("bulk", err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: bulk.TransportAuth, Op: "bulk",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &Error{Kind: bulk.TransportConnection, Op: "bulk",
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: bulk.TransportProtocol, Op: "bulk",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var raw bulk.RawResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &Error{Kind: bulk.TransportProtocol, Op: "bulk",
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &raw, nil
}

func (c *Client) auth(req *http.Request) {
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// classify maps Go transport errors onto retry classes. Deadline and
// timeout conditions are kept distinct from connectivity because their
// outcomes differ: a timed-out batch may have been applied.
func classify(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: bulk.TransportTimeout, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: bulk.TransportTimeout, Op: op, Err: err}
	}
	return &Error{Kind: bulk.TransportConnection, Op: op, Err: err}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
