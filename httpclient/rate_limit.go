package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-host rate limiting. The 4chan API asks
// clients for no more than one request per second.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per host. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	Burst int

	// WaitOnLimit makes requests wait for a token. When false they fail
	// immediately with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns one request per second per host with a
// burst of 4, waiting for a token.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             4,
		WaitOnLimit:       true,
	}
}

// NoRateLimitConfig disables rate limiting.
func NoRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{}
}

// ErrRateLimited is returned when a request is rejected due to rate limiting.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitTransport implements http.RoundTripper with one limiter per host.
type rateLimitTransport struct {
	next http.RoundTripper
	cfg  RateLimitConfig

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// newRateLimitTransport creates a rate-limited transport wrapper.
func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &rateLimitTransport{
		next:     next,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the limiter for host, creating it on first use.
func (t *rateLimitTransport) limiter(host string) *rate.Limiter {
	t.mu.RLock()
	l, ok := t.limiters[host]
	t.mu.RUnlock()
	if ok {
		return l
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(t.cfg.RequestsPerSecond), t.cfg.Burst)
	t.limiters[host] = l
	return l
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	l := t.limiter(req.URL.Host)

	if t.cfg.WaitOnLimit {
		if err := l.Wait(req.Context()); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
	} else if !l.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}

// Unwrap returns the wrapped transport.
func (t *rateLimitTransport) Unwrap() http.RoundTripper {
	return t.next
}
