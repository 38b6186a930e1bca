package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func TestDoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("test-agent"))
	resp, err := f.Do(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %q", string(resp.Body))
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestDoNotFoundIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := NewFetcher(WithSleep(rec.sleep))
	_, err := f.Do(context.Background(), &Request{URL: server.URL + "/missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Do = %v, want ErrNotFound", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("expected no backoff sleeps, got %v", rec.recorded())
	}
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	f := NewFetcher(WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Do(context.Background(), &Request{URL: server.URL})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", httpErr.StatusCode)
	}
	if httpErr.Body != "bad request" {
		t.Errorf("Body = %q", httpErr.Body)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestDoRateLimitHonorsRetryAfter(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := NewFetcher(WithSleep(rec.sleep))
	if _, err := f.Do(context.Background(), &Request{URL: server.URL}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	delays := rec.recorded()
	if len(delays) != 1 {
		t.Fatalf("sleeps = %v, want exactly one", delays)
	}
	if delays[0] < 2*time.Second {
		t.Errorf("waited %s before retrying, want >= 2s", delays[0])
	}
}

func TestDoRateLimitExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := NewFetcher(WithSleep(rec.sleep))
	_, err := f.Do(context.Background(), &Request{URL: server.URL})

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected errors.Is(err, ErrRateLimited)")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, 2 * time.Second}, rec.recorded()); diff != "" {
		t.Errorf("backoff delays mismatch (-want +got):\n%s", diff)
	}
}

func TestDoServerErrorRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	rec := &sleepRecorder{}
	f := NewFetcher(WithSleep(rec.sleep), WithBaseDelay(100*time.Millisecond))
	resp, err := f.Do(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(resp.Body) != "success" {
		t.Errorf("body = %q", string(resp.Body))
	}
	if diff := cmp.Diff([]time.Duration{100 * time.Millisecond}, rec.recorded()); diff != "" {
		t.Errorf("backoff delays mismatch (-want +got):\n%s", diff)
	}
}

func TestDoMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxAttempts(4), WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Do(context.Background(), &Request{URL: server.URL})
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("expected ErrUpstreamDown, got %v", err)
	}
	if got := attempts.Load(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
}

func TestDoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	f := NewFetcher(WithTimeout(20*time.Millisecond), WithMaxAttempts(2), WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Do(context.Background(), &Request{URL: server.URL})

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("expected errors.Is(err, ErrTimeout)")
	}
	if timeoutErr.Timeout != 20*time.Millisecond {
		t.Errorf("Timeout = %s", timeoutErr.Timeout)
	}
}

func TestDoContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	f := NewFetcher()
	_, err := f.Do(ctx, &Request{URL: server.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestDoNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	rec := &sleepRecorder{}
	f := NewFetcher(WithSleep(rec.sleep))
	_, err := f.Do(context.Background(), &Request{URL: url})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
	if len(rec.recorded()) != 2 {
		t.Errorf("expected 2 backoff sleeps for 3 attempts, got %v", rec.recorded())
	}
}

func TestDoReplaysBody(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("attempt %d body = %q", attempts.Load()+1, string(body))
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	f := NewFetcher(WithSleep((&sleepRecorder{}).sleep))
	_, err := f.Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"q":1}`),
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"soon", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-30 * time.Second).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value, now); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"404", &HTTPError{StatusCode: 404}, false},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"503", &HTTPError{StatusCode: 503}, true},
		{"timeout", &TimeoutError{}, true},
		{"network", &NetworkError{Err: errors.New("reset")}, true},
		{"rate limit", &RateLimitError{}, true},
		{"validation", &ValidationError{Reason: "bad"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}
