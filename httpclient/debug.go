package httpclient

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugTransport logs every attempt that reaches the wire. It sits below the
// retry layer, so each retry shows up as its own pair of log lines.
type debugTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func newDebugTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if !cfg.Debug {
		return next
	}
	return &debugTransport{next: next, logger: cfg.Logger}
}

// RoundTrip implements http.RoundTripper.
func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("curl", generateCurlCommand(req)).
		Msg("HTTP request")

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug().Err(err).
			Str("url", req.URL.String()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request failed")
		return nil, err
	}

	t.logger.Debug().
		Int("status", resp.StatusCode).
		Str("url", req.URL.String()).
		Dur("duration", time.Since(start)).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
	return resp, nil
}

// Unwrap returns the wrapped transport.
func (t *debugTransport) Unwrap() http.RoundTripper {
	return t.next
}

// generateCurlCommand renders req as a cURL command. Bodies are left out and
// the pass cookie is masked.
//
// Example output:
//
//	curl 'https://a.4cdn.org/g/catalog.json' -H 'User-Agent: chanloader/1.0'
func generateCurlCommand(req *http.Request) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet && req.Method != "" {
		parts = append(parts, "-X", req.Method)
	}
	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range req.Header[k] {
			if k == "Cookie" || k == "Authorization" {
				v = "***"
			}
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	if req.ContentLength > 0 {
		parts = append(parts, "--data-binary", fmt.Sprintf("'<%d bytes>'", req.ContentLength))
	}

	return strings.Join(parts, " ")
}
