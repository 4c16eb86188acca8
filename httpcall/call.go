// Package httpcall dispatches call descriptors over a shared HTTP client.
//
// A Call describes one logical request: where it goes, how the request is
// set up and how the response is parsed. Submit builds the request, lets the
// call set it up, applies the site's RequestModifier, and runs it in the
// background. The callback receives exactly one Result, which carries either
// the parsed value or a classified failure.
//
//	httpcall.Submit(ctx, manager, catalogCall, func(r httpcall.Result[[]chan4.CatalogPage]) {
//	    if r.Failure != nil {
//	        fmt.Println(r.Failure.Message())
//	        return
//	    }
//	    render(r.Value)
//	})
package httpcall

import (
	"errors"
	"net/http"

	"github.com/kroma-labs/chanloader/failure"
)

// ErrNoTarget is returned by a Call whose target URL cannot be resolved.
var ErrNoTarget = errors.New("httpcall: call has no target")

// Call is a request descriptor. It is created per logical request and
// consumed once by Submit.
type Call[T any] interface {
	// Target returns the absolute URL of the request.
	Target() (string, error)

	// Site returns the identifier used to look up a RequestModifier.
	// An empty string means the call belongs to no site.
	Site() string

	// Setup customizes the request: method, headers, body.
	Setup(req *http.Request) error

	// Parse turns a 2xx response into the call's value. The body is closed
	// by the dispatcher.
	Parse(resp *http.Response) (T, error)
}

// Result is the outcome of a submitted call. Exactly one of Value and
// Failure is meaningful.
type Result[T any] struct {
	Value   T
	Failure *failure.Failure
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Callback receives the Result of a submitted call, exactly once.
type Callback[T any] func(Result[T])
