package failure

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Cause is the kind of error underlying a failure.
type Cause int

const (
	// CauseNone means no error was recorded.
	CauseNone Cause = iota
	// CauseTLS is a handshake or certificate verification failure.
	CauseTLS
	// CauseTimeout is a dial, read or overall request timeout.
	CauseTimeout
	// CauseUnknownHost is a DNS resolution failure.
	CauseUnknownHost
	// CauseIO is any other transport-level failure.
	CauseIO
	// CauseOther is an error that is not transport related, such as a
	// decoding error.
	CauseOther
)

// String returns the log label of the cause.
func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseTLS:
		return "tls"
	case CauseTimeout:
		return "timeout"
	case CauseUnknownHost:
		return "unknown_host"
	case CauseIO:
		return "io"
	default:
		return "other"
	}
}

func (c Cause) isNetwork() bool {
	return c == CauseTimeout || c == CauseUnknownHost || c == CauseIO
}

// CauseOf inspects an error chain and returns its Cause.
//
// This is the only place where error types are introspected; everything
// downstream works on the returned value.
func CauseOf(err error) Cause {
	if err == nil {
		return CauseNone
	}

	if isTLSError(err) {
		return CauseTLS
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return CauseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseUnknownHost
	}

	if isIOError(err) {
		return CauseIO
	}

	return CauseOther
}

func isTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return true
	}

	// Some handshake errors from crypto/tls are unexported. They only count
	// when they surface from the transport, and only the innermost error
	// is read: a URL or a decode message may contain the same words.
	if !isTransportError(err) {
		return false
	}
	msg := innermost(err).Error()
	return strings.HasPrefix(msg, "tls: ") || strings.HasPrefix(msg, "x509: ")
}

func isTransportError(err error) bool {
	var opErr *net.OpError
	var urlErr *url.Error
	return errors.As(err, &opErr) || errors.As(err, &urlErr)
}

// innermost follows single-error wraps down to the last error.
func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func isIOError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	// A body cut short mid-read. A bare io.EOF is left alone: decoders
	// return it for empty input.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// Anything else surfaced by http.Client.Do happened on the way to or
	// from the server.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
