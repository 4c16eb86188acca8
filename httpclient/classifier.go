package httpclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/kroma-labs/chanloader/failure"
)

// RetryClassifier determines if a request should be retried.
// Return true to retry, false to stop immediately.
//
// Example classifier that also retries 500:
//
//	client := httpclient.New(
//	    httpclient.WithRetryClassifier(func(resp *http.Response, err error) bool {
//	        if resp != nil && resp.StatusCode == http.StatusInternalServerError {
//	            return true
//	        }
//	        return httpclient.DefaultClassifier(resp, err)
//	    }),
//	)
type RetryClassifier func(resp *http.Response, err error) bool

// DefaultClassifier retries transient failures only.
//
// Retries on:
//   - timeouts and I/O errors (connection refused/reset, truncated body)
//   - 429, 502, 503 and 504
//
// Does NOT retry on:
//   - TLS errors and unknown hosts, which will not heal within seconds
//   - 404 and other 4xx (a deleted thread stays deleted)
//   - 500
//   - context cancellation
func DefaultClassifier(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		switch failure.CauseOf(err) {
		case failure.CauseTimeout, failure.CauseIO:
			return true
		default:
			return false
		}
	}

	if resp != nil {
		return isRetryableStatusCode(resp.StatusCode)
	}

	return false
}

// isRetryableStatusCode returns true for status codes that indicate
// transient failures that may succeed on retry.
func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// NeverRetryClassifier returns a classifier that never retries.
func NeverRetryClassifier() RetryClassifier {
	return func(_ *http.Response, _ error) bool {
		return false
	}
}

// StatusCodeClassifier retries on the given status codes, plus whatever
// DefaultClassifier retries for transport errors.
//
// Example:
//
//	classifier := httpclient.StatusCodeClassifier(500, 502, 503, 504)
func StatusCodeClassifier(codes ...int) RetryClassifier {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}

	return func(resp *http.Response, err error) bool {
		if err != nil {
			return DefaultClassifier(nil, err)
		}
		if resp != nil {
			return codeSet[resp.StatusCode]
		}
		return false
	}
}
