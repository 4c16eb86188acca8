package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// MockTransport is a configurable http.RoundTripper for tests. Stubs are
// checked in the order they were added and the first match wins.
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp *stubbedResponse
	defaultErr  error
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stubbedResponse struct {
	statusCode int
	header     http.Header
	body       []byte
}

type stub struct {
	matcher  func(*http.Request) bool
	response *stubbedResponse
	err      error
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse stubs all unmatched requests to return the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &stubbedResponse{statusCode: statusCode, body: []byte(body)}
	return m
}

// StubError stubs all unmatched requests to return the given error.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath stubs requests for path to return the given response.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathHeader is StubPath with response headers.
func (m *MockTransport) StubPathHeader(path string, statusCode int, header http.Header, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  func(req *http.Request) bool { return req.URL.Path == path },
		response: &stubbedResponse{statusCode: statusCode, header: header, body: []byte(body)},
	})
	return m
}

// StubPathError stubs requests for path to fail with err.
func (m *MockTransport) StubPathError(path string, err error) *MockTransport {
	return m.StubFuncError(func(req *http.Request) bool {
		return req.URL.Path == path
	}, err)
}

// StubFunc stubs requests matching the predicate to return the given response.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  matcher,
		response: &stubbedResponse{statusCode: statusCode, body: []byte(body)},
	})
	return m
}

// StubFuncError stubs requests matching the predicate to return the given error.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, err: err})
	return m
}

// OnRequest sets a hook that is called for each request.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	// Consume the body like a real transport would, so progress readers
	// and multipart writers run to completion.
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		req.Body.Close()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return s.response.build(req), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return m.defaultResp.build(req), nil
	}

	return nil, fmt.Errorf("no stub found for request: %s %s", req.Method, req.URL)
}

// build returns a fresh response so concurrent callers never share a body.
func (s *stubbedResponse) build(req *http.Request) *http.Response {
	header := make(http.Header)
	for k, v := range s.header {
		header[k] = append([]string(nil), v...)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.statusCode, http.StatusText(s.statusCode)),
		StatusCode:    s.statusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
		Request:       req,
	}
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

// WithMockTransport routes the client through mock instead of the network.
func WithMockTransport(mock *MockTransport) Option {
	return WithBaseTransport(mock)
}
