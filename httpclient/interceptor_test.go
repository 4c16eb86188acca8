package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUserAgent struct {
	calls atomic.Int32
}

func (c *countingUserAgent) UserAgent() string {
	c.calls.Add(1)
	return "counting/1.0"
}

func TestUserAgentInterceptor(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		callerUA string
		want     string
	}{
		{
			name: "given no provider, then sends the default user agent",
			want: DefaultUserAgent,
		},
		{
			name: "given a static provider, then sends its value",
			opts: []Option{WithUserAgent(StaticUserAgent("Clover/2.0"))},
			want: "Clover/2.0",
		},
		{
			name:     "given the caller set a user agent, then the provider wins",
			opts:     []Option{WithUserAgent(StaticUserAgent("Clover/2.0"))},
			callerUA: "curl/8.0",
			want:     "Clover/2.0",
		},
		{
			name: "given a nil provider, then keeps the default",
			opts: []Option{WithUserAgent(nil)},
			want: DefaultUserAgent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = r.Header.Get("User-Agent")
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			client := New(append(tt.opts, WithRateLimit(NoRateLimitConfig()))...)

			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)
			if tt.callerUA != "" {
				req.Header.Set("User-Agent", tt.callerUA)
			}

			resp, err := client.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, captured)
		})
	}
}

func TestUserAgentInterceptor_ProviderConsultedPerRequest(t *testing.T) {
	provider := &countingUserAgent{}
	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := New(
		WithMockTransport(mock),
		WithUserAgent(provider),
		WithRateLimit(NoRateLimitConfig()),
	)

	for range 3 {
		req, err := http.NewRequest(http.MethodGet, "https://a.4cdn.org/boards.json", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, int32(3), provider.calls.Load())
	assert.Equal(t, "counting/1.0", mock.LastRequest().Header.Get("User-Agent"))
}

func TestInterceptorTransport_DoesNotMutateCallerRequest(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := New(
		WithMockTransport(mock),
		WithRequestInterceptor(HeaderInterceptor("X-Test", "1")),
		WithRateLimit(NoRateLimitConfig()),
	)

	req, err := http.NewRequest(http.MethodGet, "https://a.4cdn.org/boards.json", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("X-Test"))
	assert.Equal(t, "1", mock.LastRequest().Header.Get("X-Test"))
}

func TestInterceptorChain_Order(t *testing.T) {
	var order []string
	chain := NewInterceptorChain()
	chain.AddRequestInterceptor(func(_ *http.Request) error {
		order = append(order, "first")
		return nil
	})
	chain.AddRequestInterceptor(func(_ *http.Request) error {
		order = append(order, "second")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, chain.ApplyRequestInterceptors(req))

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 2, chain.Len())
}

func TestInterceptorChain_StopsOnError(t *testing.T) {
	wantErr := errors.New("rejected")
	var reached bool

	mock := NewMockTransport().StubResponse(http.StatusOK, "ok")
	client := New(
		WithMockTransport(mock),
		WithRequestInterceptor(func(_ *http.Request) error { return wantErr }),
		WithRequestInterceptor(func(_ *http.Request) error {
			reached = true
			return nil
		}),
		WithRateLimit(NoRateLimitConfig()),
	)

	req, err := http.NewRequest(http.MethodGet, "https://a.4cdn.org/boards.json", nil)
	require.NoError(t, err)

	_, err = client.Do(req)

	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, reached)
	assert.Zero(t, mock.RequestCount())
}

func TestAuthBearerInterceptor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, AuthBearerInterceptor("token-123")(req))

	assert.Equal(t, "Bearer token-123", req.Header.Get("Authorization"))
}
