package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxRetryAfter caps a server supplied Retry-After delay.
const maxRetryAfter = 30

// statusError marks an attempt that returned a retryable status code.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}

// retryTransport wraps an http.RoundTripper with retry logic.
// Only idempotent requests are retried; a POST goes through exactly once.
type retryTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	classifier RetryClassifier
}

// newRetryTransport creates a new retry transport wrapper.
func newRetryTransport(base http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.RetryConfig.IsEnabled() {
		return base
	}

	classifier := cfg.RetryClassifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	return &retryTransport{
		base:       base,
		cfg:        cfg,
		classifier: classifier,
	}
}

// RoundTrip implements http.RoundTripper with automatic retries.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req) {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	cfg := t.cfg.RetryConfig
	span := trace.SpanFromContext(ctx)

	var (
		last    *http.Response
		attempt int
	)

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(ExponentialBackOffFromConfig(cfg)),
		backoff.WithMaxTries(cfg.MaxRetries + 1),
		backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			t.recordRetryEvent(span, attempt, err, next)
			t.cfg.Metrics.recordRetryAttempt(ctx, t.cfg.baseAttributes(), attempt)
		}),
	}
	if cfg.MaxElapsedTime > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	resp, err := backoff.Retry(ctx, func() (*http.Response, error) {
		discard(last)
		last = nil

		clone, err := cloneForAttempt(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := t.base.RoundTrip(clone)
		if !t.classifier(resp, err) {
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return resp, nil
		}

		if err != nil {
			return nil, err
		}

		// Keep the response so the caller sees the final status when
		// retries run out.
		last = resp
		if after := retryAfterSeconds(resp); after > 0 {
			return resp, errors.Join(&statusError{code: resp.StatusCode}, backoff.RetryAfter(after))
		}
		return resp, &statusError{code: resp.StatusCode}
	}, retryOpts...)

	if attempt > 0 {
		span.SetAttributes(
			attribute.Int("http.retry_count", attempt),
			attribute.Bool("http.retry_success", err == nil),
		)
	}

	var se *statusError
	if errors.As(err, &se) && resp != nil {
		t.cfg.Metrics.recordRetryExhausted(ctx, t.cfg.baseAttributes())
		return resp, nil
	}
	if err != nil {
		if attempt > 0 {
			t.cfg.Metrics.recordRetryExhausted(ctx, t.cfg.baseAttributes())
		}
		discard(last)
		return nil, err
	}

	return resp, nil
}

// recordRetryEvent adds a span event for the retry attempt.
func (t *retryTransport) recordRetryEvent(span trace.Span, attempt int, err error, next time.Duration) {
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", next.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("retry.reason", err.Error()))
	}

	span.AddEvent("http.retry", trace.WithAttributes(attrs...))
}

// isIdempotent reports whether req may be sent more than once.
func isIdempotent(req *http.Request) bool {
	switch req.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// cloneForAttempt returns a copy of req with a fresh body.
func cloneForAttempt(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("httpclient: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// retryAfterSeconds parses a delta-seconds Retry-After header.
func retryAfterSeconds(resp *http.Response) int {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(secs, maxRetryAfter)
}

// discard drains and closes resp so its connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
