package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1,
		JitterFactor:    0,
	}
}

func TestRetryTransport(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		statuses     []int
		wantStatus   int
		wantAttempts int32
	}{
		{
			name:         "given 503 then 200, then returns 200 after one retry",
			method:       http.MethodGet,
			statuses:     []int{http.StatusServiceUnavailable, http.StatusOK},
			wantStatus:   http.StatusOK,
			wantAttempts: 2,
		},
		{
			name:         "given persistent 503, then returns the last 503 after all retries",
			method:       http.MethodGet,
			statuses:     []int{http.StatusServiceUnavailable},
			wantStatus:   http.StatusServiceUnavailable,
			wantAttempts: 3,
		},
		{
			name:         "given 404, then does not retry",
			method:       http.MethodGet,
			statuses:     []int{http.StatusNotFound},
			wantStatus:   http.StatusNotFound,
			wantAttempts: 1,
		},
		{
			name:         "given POST with 503, then sends exactly once",
			method:       http.MethodPost,
			statuses:     []int{http.StatusServiceUnavailable},
			wantStatus:   http.StatusServiceUnavailable,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(attempts.Add(1))
				status := tt.statuses[min(n, len(tt.statuses))-1]
				w.WriteHeader(status)
				_, _ = io.WriteString(w, "attempt")
			}))
			defer server.Close()

			client := New(
				WithRetryConfig(fastRetryConfig()),
				WithRateLimit(NoRateLimitConfig()),
			)

			req, err := http.NewRequest(tt.method, server.URL, strings.NewReader("body"))
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "attempt", string(body))
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}

func TestRetryTransport_NetworkErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	mock := NewMockTransport().
		StubFuncError(func(_ *http.Request) bool { return calls.Add(1) == 1 }, syscall.ECONNRESET).
		StubResponse(http.StatusOK, "ok")

	client := New(
		WithMockTransport(mock),
		WithRetryConfig(fastRetryConfig()),
		WithRateLimit(NoRateLimitConfig()),
	)

	req, err := http.NewRequest(http.MethodGet, "https://a.4cdn.org/boards.json", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestRetryTransport_Disabled(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusServiceUnavailable, "")
	client := New(
		WithMockTransport(mock),
		WithRetryConfig(NoRetryConfig()),
		WithRateLimit(NoRateLimitConfig()),
	)

	req, err := http.NewRequest(http.MethodGet, "https://a.4cdn.org/boards.json", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1, mock.RequestCount())
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "given no header, then returns zero", header: "", want: 0},
		{name: "given delta seconds, then returns them", header: "3", want: 3},
		{name: "given huge value, then caps it", header: "3600", want: maxRetryAfter},
		{name: "given http date, then ignores it", header: "Wed, 21 Oct 2015 07:28:00 GMT", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, retryAfterSeconds(resp))
		})
	}
}
