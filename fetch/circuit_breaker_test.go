package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type stubDoer struct {
	calls atomic.Int32
	err   error
}

func (s *stubDoer) Do(ctx context.Context, req *Request) (*Response, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &Response{StatusCode: http.StatusOK, Body: []byte("ok")}, nil
}

func TestCircuitBreakerDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test content"))
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(NewFetcher())

	resp, err := cbFetcher.Do(context.Background(), &Request{URL: server.URL + "/CHANGELOG.md"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(resp.Body) != "test content" {
		t.Errorf("expected 'test content', got %q", string(resp.Body))
	}
}

func TestCircuitBreakerTripsOnUpstreamFailures(t *testing.T) {
	stub := &stubDoer{err: &HTTPError{StatusCode: http.StatusBadGateway, URL: "https://pypi.org/x"}}
	cbFetcher := NewCircuitBreakerFetcher(stub)

	for i := 0; i < defaultTripThreshold; i++ {
		_, _ = cbFetcher.Do(context.Background(), &Request{URL: "https://pypi.org/pypi/requests/json"})
	}

	_, err := cbFetcher.Do(context.Background(), &Request{URL: "https://pypi.org/pypi/flask/json"})
	if !errors.Is(err, ErrUpstreamDown) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected *NetworkError, got %T", err)
	}
	if got := stub.calls.Load(); got != defaultTripThreshold {
		t.Errorf("underlying calls = %d, want %d", got, defaultTripThreshold)
	}

	states := cbFetcher.BreakerStates()
	if states["pypi.org"] != "open" {
		t.Errorf("state for pypi.org = %q, want open", states["pypi.org"])
	}
}

func TestCircuitBreakerIgnoresNotFound(t *testing.T) {
	stub := &stubDoer{err: &HTTPError{StatusCode: http.StatusNotFound}}
	cbFetcher := NewCircuitBreakerFetcher(stub)

	for i := 0; i < defaultTripThreshold*2; i++ {
		_, err := cbFetcher.Do(context.Background(), &Request{URL: "https://raw.githubusercontent.com/a/b/main/CHANGES.md"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}

	if got := stub.calls.Load(); got != defaultTripThreshold*2 {
		t.Errorf("underlying calls = %d, want %d", got, defaultTripThreshold*2)
	}
	if states := cbFetcher.BreakerStates(); states["raw.githubusercontent.com"] != "closed" {
		t.Errorf("breaker should stay closed on 404s, got %q", states["raw.githubusercontent.com"])
	}
}

func TestCircuitBreakerIsolatesHosts(t *testing.T) {
	stub := &stubDoer{err: &NetworkError{URL: "https://api.osv.dev", Err: errors.New("connection refused")}}
	cbFetcher := NewCircuitBreakerFetcher(stub)

	for i := 0; i < defaultTripThreshold; i++ {
		_, _ = cbFetcher.Do(context.Background(), &Request{URL: "https://api.osv.dev/v1/query"})
	}

	stub.err = nil
	if _, err := cbFetcher.Do(context.Background(), &Request{URL: "https://pypi.org/pypi/requests/json"}); err != nil {
		t.Errorf("other hosts should be unaffected, got %v", err)
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "pypi json api",
			url:      "https://pypi.org/pypi/requests/json",
			expected: "pypi.org",
		},
		{
			name:     "pypistats",
			url:      "https://pypistats.org/api/packages/requests/recent",
			expected: "pypistats.org",
		},
		{
			name:     "with port",
			url:      "http://127.0.0.1:8080/x",
			expected: "127.0.0.1:8080",
		},
		{
			name:     "not a url",
			url:      "requests",
			expected: "requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractHost(tt.url); got != tt.expected {
				t.Errorf("extractHost(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}
