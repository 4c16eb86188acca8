package httpclient

import (
	"net/http"
)

// DefaultUserAgent is sent when no UserAgentProvider is configured.
const DefaultUserAgent = "chanloader/1.0"

// RequestInterceptor allows modification of requests before they are sent.
// Interceptors are executed in the order they are added.
type RequestInterceptor func(req *http.Request) error

// InterceptorChain manages request interceptors.
type InterceptorChain struct {
	requestInterceptors []RequestInterceptor
}

// NewInterceptorChain creates an empty interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(i RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, i)
}

// Len returns the number of interceptors in the chain.
func (c *InterceptorChain) Len() int {
	return len(c.requestInterceptors)
}

// ApplyRequestInterceptors runs all request interceptors in order.
// Returns the first error.
func (c *InterceptorChain) ApplyRequestInterceptors(req *http.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(req); err != nil {
			return err
		}
	}
	return nil
}

// UserAgentProvider supplies the User-Agent string. Implementations must be
// safe for concurrent use.
type UserAgentProvider interface {
	UserAgent() string
}

// StaticUserAgent is a UserAgentProvider returning a fixed string.
type StaticUserAgent string

// UserAgent implements UserAgentProvider.
func (s StaticUserAgent) UserAgent() string {
	return string(s)
}

// UserAgentInterceptor creates an interceptor that sets the User-Agent header
// from the provider, overriding whatever the caller set.
func UserAgentInterceptor(p UserAgentProvider) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("User-Agent", p.UserAgent())
		return nil
	}
}

// AuthBearerInterceptor creates an interceptor that adds a Bearer token.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}

// HeaderInterceptor creates an interceptor that sets a fixed header.
func HeaderInterceptor(name, value string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set(name, value)
		return nil
	}
}

// Compile-time interface check.
var _ http.RoundTripper = (*interceptorTransport)(nil)

// interceptorTransport applies the chain to a clone of every request before
// handing it to next, so the caller's request is never mutated.
type interceptorTransport struct {
	next  http.RoundTripper
	chain *InterceptorChain
}

func newInterceptorTransport(next http.RoundTripper, chain *InterceptorChain) http.RoundTripper {
	if chain == nil || chain.Len() == 0 {
		return next
	}
	return &interceptorTransport{next: next, chain: chain}
}

// RoundTrip implements http.RoundTripper.
func (t *interceptorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if err := t.chain.ApplyRequestInterceptors(clone); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	return t.next.RoundTrip(clone)
}

// Unwrap returns the wrapped transport.
func (t *interceptorTransport) Unwrap() http.RoundTripper {
	return t.next
}
