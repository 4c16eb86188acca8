// Package httpclient provides the shared HTTP transport used by every call:
// a single *http.Client wrapped in interceptors, OpenTelemetry
// instrumentation and resilience layers.
//
// # Features
//
//   - User-Agent injection on every request through an interceptor
//   - OpenTelemetry tracing and metrics, with errors labelled by failure kind
//   - Retries with exponential backoff for idempotent requests only
//   - Optional circuit breaker, in memory or shared through Redis
//   - Per-host rate limiting (one request per second by default)
//   - Debug logging of every attempt with zerolog
//
// # Quick Start
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("chanloader"),
//	    httpclient.WithUserAgent(httpclient.StaticUserAgent("chanloader/1.0")),
//	)
//	resp, err := client.Do(req)
//
// # Retry Configuration
//
//	client := httpclient.New(
//	    httpclient.WithRetryConfig(httpclient.AggressiveRetryConfig()),
//	)
//
// POST requests are never retried, whatever the configuration.
//
// # Circuit Breaker
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	client := httpclient.New(
//	    httpclient.WithBreakerConfig(httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))),
//	)
//
// # Testing
//
//	mock := httpclient.NewMockTransport().StubPath("/g/catalog.json", 200, "[]")
//	client := httpclient.New(httpclient.WithMockTransport(mock))
package httpclient
