package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

const defaultTripThreshold = 5

// CircuitBreakerFetcher wraps a Doer with per-host circuit breakers.
type CircuitBreakerFetcher struct {
	fetcher   Doer
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
// A host's breaker trips after 5 consecutive upstream failures.
func NewCircuitBreakerFetcher(f Doer) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: defaultTripThreshold,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// getBreaker returns or creates a circuit breaker for the given host.
func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(cbf.threshold),
	})

	cbf.breakers[host] = breaker
	return breaker
}

// Do runs req through the host's breaker. Not-found, client errors and
// cancellations pass through without counting as failures.
func (cbf *CircuitBreakerFetcher) Do(ctx context.Context, req *Request) (*Response, error) {
	host := extractHost(req.URL)
	breaker := cbf.getBreaker(host)

	var resp *Response
	var passthrough error
	err := breaker.Call(func() error {
		r, err := cbf.fetcher.Do(ctx, req)
		if err != nil && !countsAsFailure(err) {
			passthrough = err
			return nil
		}
		resp = r
		return err
	}, 0)

	if errors.Is(err, circuit.ErrBreakerOpen) {
		return nil, &NetworkError{
			URL: req.URL,
			Err: fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown),
		}
	}
	if passthrough != nil {
		return nil, passthrough
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrRateLimited) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

// extractHost extracts a host identifier from a URL for breaker grouping.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerStates returns "open" or "closed" per host seen so far.
func (cbf *CircuitBreakerFetcher) BreakerStates() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string, len(cbf.breakers))
	for host, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
