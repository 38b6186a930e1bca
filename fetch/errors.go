package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited by upstream")
	ErrUpstreamDown   = errors.New("upstream unavailable")
	ErrTimeout        = errors.New("request timed out")
	ErrInvalidPayload = errors.New("invalid upstream payload")
)

// HTTPError is returned for non-2xx responses other than 429.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Unwrap maps 404 to ErrNotFound and 5xx to ErrUpstreamDown.
func (e *HTTPError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode >= 500:
		return ErrUpstreamDown
	}
	return nil
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// RateLimitError is returned when the upstream keeps answering 429.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration // zero when the server sent no Retry-After
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s, retry after %s", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %s", e.URL)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// TimeoutError is returned when a single attempt exceeds the fetcher timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// NetworkError wraps transport failures (DNS, connection refused, reset, open breaker).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when an upstream payload does not have the
// expected shape.
type ValidationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload from %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid payload from %s: %s", e.URL, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidPayload, e.Err}
	}
	return []error{ErrInvalidPayload}
}

// IsRetryable reports whether err is worth another attempt: timeouts,
// transport failures, rate limits and 5xx responses.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var timeoutErr *TimeoutError
	var netErr *NetworkError
	var rateErr *RateLimitError
	return errors.As(err, &timeoutErr) || errors.As(err, &netErr) || errors.As(err, &rateErr)
}
