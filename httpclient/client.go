package httpclient

import (
	"net/http"
	"time"
)

// Client is the shared HTTP transport of the application. It is safe for
// concurrent use and is meant to be created once and shared by every call.
//
// Requests pass through, outermost first:
//
//	interceptors (User-Agent, custom) -> tracing/metrics -> circuit breaker
//	    -> retry -> per-host rate limit -> debug log -> net/http transport
type Client struct {
	// httpClient is the underlying HTTP client with the transport chain.
	httpClient *http.Client

	// config holds all client configuration.
	config *internalConfig
}

// New creates a Client with the default imageboard configuration and
// OpenTelemetry instrumentation.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("chanloader"),
//	    httpclient.WithUserAgent(httpclient.StaticUserAgent("chanloader/1.0")),
//	)
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	var base http.RoundTripper
	if cfg.BaseTransport != nil {
		base = cfg.BaseTransport
	} else {
		base = cfg.buildTransport()
	}

	logged := newDebugTransport(base, cfg)
	limited := newRateLimitTransport(logged, cfg.RateLimit)
	withRetry := newRetryTransport(limited, cfg)
	withBreaker := newCircuitBreakerTransport(withRetry, cfg)
	instrumented := newOtelTransport(withBreaker, cfg)

	chain := NewInterceptorChain()
	chain.AddRequestInterceptor(UserAgentInterceptor(cfg.UserAgent))
	for _, i := range cfg.Interceptors.requestInterceptors {
		chain.AddRequestInterceptor(i)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: newInterceptorTransport(instrumented, chain),
			Timeout:   cfg.httpConfig.Timeout,
		},
		config: cfg,
	}
}

// Do sends the request through the transport chain.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// HTTP returns the underlying *http.Client, e.g. for libraries expecting one.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// PoolStats is a snapshot of the connection pool configuration.
type PoolStats struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
}

// PoolStats returns the pool settings of the innermost *http.Transport, or
// the zero value when the chain ends in something else (e.g. a mock).
func (c *Client) PoolStats() PoolStats {
	transport := unwrapTransport(c.httpClient.Transport)
	if transport == nil {
		return PoolStats{}
	}

	return PoolStats{
		MaxIdleConns:        transport.MaxIdleConns,
		MaxIdleConnsPerHost: transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     transport.MaxConnsPerHost,
		IdleConnTimeout:     transport.IdleConnTimeout,
	}
}

// unwrapTransport traverses the transport chain to find the base http.Transport.
func unwrapTransport(rt http.RoundTripper) *http.Transport {
	for {
		switch t := rt.(type) {
		case *http.Transport:
			return t
		case interface{ Unwrap() http.RoundTripper }:
			rt = t.Unwrap()
		default:
			return nil
		}
	}
}
