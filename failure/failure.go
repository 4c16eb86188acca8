// Package failure classifies failed imageboard API calls into a small,
// user-facing taxonomy.
//
// A Failure is plain data: the HTTP status code that was recorded (zero when
// none was) and the kind of underlying cause. Classification is a pure
// function of those two values, so callers never need to inspect error
// chains to decide what to show the user.
//
//	f := failure.FromStatus(http.StatusNotFound)
//	f.Kind()       // KindNotFound
//	f.IsNotFound() // true
//	f.Message()    // "404: not found"
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the classification bucket of a failed call.
type Kind int

const (
	// KindParse means the call completed without a transport error or an
	// error status, but the response could not be processed.
	KindParse Kind = iota
	// KindTLS means the secure connection could not be established.
	KindTLS
	// KindNetwork means a timeout, an unresolved host or another I/O failure.
	KindNetwork
	// KindNotFound means the server answered 404.
	KindNotFound
	// KindServerError means the server answered with any other error status.
	KindServerError
)

// String returns the metric/log label of the kind.
func (k Kind) String() string {
	switch k {
	case KindTLS:
		return "tls_failure"
	case KindNetwork:
		return "network_failure"
	case KindNotFound:
		return "not_found"
	case KindServerError:
		return "server_error"
	default:
		return "parse_failure"
	}
}

// Classify maps a recorded status code and cause to a Kind.
// A status of zero means no status was recorded.
//
// Rules are applied in order, first match wins:
//  1. TLS cause
//  2. timeout, unknown host or I/O cause
//  3. status 404
//  4. any other recorded status
//  5. everything else
func Classify(status int, cause Cause) Kind {
	switch {
	case cause == CauseTLS:
		return KindTLS
	case cause.isNetwork():
		return KindNetwork
	case status == http.StatusNotFound:
		return KindNotFound
	case status != 0:
		return KindServerError
	default:
		return KindParse
	}
}

// Failure is the classified outcome of a failed call.
type Failure struct {
	// StatusCode is the HTTP status of the response, or zero if the call
	// failed before a status was received (or after a 2xx response).
	StatusCode int

	// Cause is the kind of the underlying error, CauseNone if there was none.
	Cause Cause

	// Err is the underlying error kept for logs and errors.Is/As.
	// It is never shown to the user.
	Err error
}

// FromStatus returns a Failure for a response with a non-successful status.
func FromStatus(code int) *Failure {
	return &Failure{StatusCode: code}
}

// FromError returns a Failure for an error raised while sending the request
// or processing the response.
func FromError(err error) *Failure {
	return &Failure{Cause: CauseOf(err), Err: err}
}

// Kind returns the classification of the failure.
func (f *Failure) Kind() Kind {
	return Classify(f.StatusCode, f.Cause)
}

// IsNotFound reports whether the recorded status is exactly 404, regardless
// of how the failure is classified.
func (f *Failure) IsNotFound() bool {
	return f.StatusCode == http.StatusNotFound
}

// MessageKey returns the key of the user-facing message for this failure.
func (f *Failure) MessageKey() string {
	return f.Kind().MessageKey()
}

// Message returns the default user-facing text for this failure.
func (f *Failure) Message() string {
	return f.Kind().Message()
}

// Error implements error.
func (f *Failure) Error() string {
	switch {
	case f.Err != nil && f.StatusCode != 0:
		return fmt.Sprintf("%s (status %d): %v", f.Kind(), f.StatusCode, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind(), f.Err)
	case f.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", f.Kind(), f.StatusCode)
	default:
		return f.Kind().String()
	}
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// As returns the Failure in err's chain, if any.
func As(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
