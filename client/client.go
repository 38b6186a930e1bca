// Package client provides the JSON/text HTTP client used by the upstream API
// wrappers. Retries, timeouts and circuit breaking come from package fetch.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel/fetch"
)

// Client performs requests against upstream APIs.
type Client struct {
	doer    fetch.Doer
	headers http.Header
}

type config struct {
	fetchOpts []fetch.Option
	doer      fetch.Doer
	breaker   bool
	headers   http.Header
}

// Option configures a Client.
type Option func(*config)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.fetchOpts = append(c.fetchOpts, fetch.WithTimeout(d))
	}
}

// WithMaxAttempts sets the total number of attempts per request.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		c.fetchOpts = append(c.fetchOpts, fetch.WithMaxAttempts(n))
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.fetchOpts = append(c.fetchOpts, fetch.WithLogger(l))
	}
}

// WithFetchOptions passes options straight to the underlying fetch.Fetcher.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(c *config) {
		c.fetchOpts = append(c.fetchOpts, opts...)
	}
}

// WithDoer replaces the fetcher entirely. Fetch options are ignored.
func WithDoer(d fetch.Doer) Option {
	return func(c *config) {
		c.doer = d
	}
}

// WithoutCircuitBreaker disables per-host circuit breaking.
func WithoutCircuitBreaker() Option {
	return func(c *config) {
		c.breaker = false
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *config) {
		c.headers.Add(key, value)
	}
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	cfg := &config{breaker: true, headers: http.Header{}}
	for _, opt := range opts {
		opt(cfg)
	}

	doer := cfg.doer
	if doer == nil {
		doer = fetch.NewFetcher(cfg.fetchOpts...)
		if cfg.breaker {
			doer = fetch.NewCircuitBreakerFetcher(doer)
		}
	}

	return &Client{doer: doer, headers: cfg.headers}
}

// DefaultClient returns a client with sensible defaults:
// - 10s per-attempt timeout
// - 3 attempts with exponential backoff from 1s
// - Retry on 429, 5xx, timeouts and transport errors
// - Per-host circuit breakers
func DefaultClient() *Client {
	return NewClient()
}

// WithUserAgent returns a copy of the client that sends ua as User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	headers := c.headers.Clone()
	headers.Set("User-Agent", ua)
	return &Client{doer: c.doer, headers: headers}
}

// GetBody performs a GET and returns the raw response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetJSON performs a GET and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	return decode(url, resp.Body, v)
}

// PostJSON encodes body as JSON, POSTs it and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, url string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, url, payload, http.Header{
		"Accept":       []string{"application/json"},
		"Content-Type": []string{"application/json"},
	})
	if err != nil {
		return err
	}
	return decode(url, resp.Body, v)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, extra http.Header) (*fetch.Response, error) {
	header := c.headers.Clone()
	for k, vs := range extra {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	// User-Agent is set by the fetcher; an explicit override wins.
	req := &fetch.Request{Method: method, URL: url, Header: header, Body: body}
	return c.doer.Do(ctx, req)
}

func decode(url string, body []byte, v any) error {
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return &fetch.ValidationError{URL: url, Reason: "decoding JSON", Err: err}
	}
	return nil
}
