// Package httpbase is the shared HTTP plumbing the SSE, single-shot HTTP,
// and streamable HTTP back ends compose rather than reimplement: request
// building, gzip/user-agent defaults, bearer-token injection with
// proactive and reactive (401) refresh, and the retry/backoff policy
// adapted from the OData client's RetryConfig.
package httpbase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const DefaultUserAgent = "mcpgo/1.0"

// TokenSource supplies bearer tokens for Authorization headers. Satisfied
// by *oauth.Manager; a nil TokenSource means the server target needs no
// auth.
type TokenSource interface {
	// Token returns the current access token, refreshing first if it's
	// within its expires-soon window.
	Token(ctx context.Context) (string, error)
	// ForceRefresh invalidates any cached token so the next Token call
	// re-authenticates. Called once after a 401 response.
	ForceRefresh()
	// HandleChallenge is called once on a 401 response with its
	// WWW-Authenticate header value (possibly empty). Per §4.5/§4.2.5 it
	// lets the source re-run OAuth discovery off the challenge's
	// resource_metadata parameter before the forced refresh is attempted,
	// for servers that never publish protected-resource metadata at the
	// well-known default path.
	HandleChallenge(ctx context.Context, challenge string)
}

// Client wraps an *http.Client with the header and retry conventions
// every HTTP-based transport shares.
type Client struct {
	HTTP        *http.Client
	Retry       *RetryConfig
	UserAgent   string
	TokenSource TokenSource
	ExtraHeaders map[string]string

	mu sync.Mutex
}

// NewClient builds a Client with the given request timeout and the
// default retry policy. A zero timeout means no client-side deadline
// beyond the context passed to Do.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Retry:     DefaultRetryConfig(),
		UserAgent: DefaultUserAgent,
	}
}

// NewRequest builds an HTTP request with the shared headers applied:
// User-Agent, Accept-Encoding: gzip, any ExtraHeaders, and a bearer token
// from TokenSource if one is configured.
func (c *Client) NewRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}

	if c.TokenSource != nil {
		token, tokenErr := c.TokenSource.Token(ctx)
		if tokenErr == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

// Do executes req with retry/backoff on the configured retryable
// statuses, and a single forced-refresh-and-retry on a 401 when a
// TokenSource is configured. req.Body must be nil or re-readable across
// attempts; callers should build a fresh request body via NewRequest
// rather than reusing an io.Reader-backed *http.Request directly.
func (c *Client) Do(ctx context.Context, buildReq func() (*http.Request, error)) (*http.Response, []byte, error) {
	triedRefresh := false

	for attempt := 0; ; attempt++ {
		req, err := buildReq()
		if err != nil {
			return nil, nil, err
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if c.Retry.ShouldRetry(0, attempt) {
				if waitErr := sleepBackoff(ctx, c.Retry.CalculateBackoff(attempt)); waitErr != nil {
					return nil, nil, waitErr
				}
				continue
			}
			return nil, nil, fmt.Errorf("http request: %w", err)
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return resp, nil, fmt.Errorf("read response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized && c.TokenSource != nil && !triedRefresh {
			triedRefresh = true
			c.TokenSource.HandleChallenge(ctx, resp.Header.Get("WWW-Authenticate"))
			c.TokenSource.ForceRefresh()
			continue
		}

		if c.Retry.ShouldRetry(resp.StatusCode, attempt) {
			if waitErr := sleepBackoff(ctx, c.Retry.CalculateBackoff(attempt)); waitErr != nil {
				return resp, data, waitErr
			}
			continue
		}

		return resp, data, nil
	}
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
