package failure

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	type args struct {
		status int
		cause  Cause
	}
	tests := []struct {
		name string
		args args
		want Kind
	}{
		{
			name: "given TLS cause and no status, then returns tls failure",
			args: args{cause: CauseTLS},
			want: KindTLS,
		},
		{
			name: "given TLS cause and 404 status, then TLS wins",
			args: args{status: http.StatusNotFound, cause: CauseTLS},
			want: KindTLS,
		},
		{
			name: "given TLS cause and 500 status, then TLS wins",
			args: args{status: http.StatusInternalServerError, cause: CauseTLS},
			want: KindTLS,
		},
		{
			name: "given timeout cause, then returns network failure",
			args: args{cause: CauseTimeout},
			want: KindNetwork,
		},
		{
			name: "given unknown host cause, then returns network failure",
			args: args{cause: CauseUnknownHost},
			want: KindNetwork,
		},
		{
			name: "given io cause and 503 status, then network wins",
			args: args{status: http.StatusServiceUnavailable, cause: CauseIO},
			want: KindNetwork,
		},
		{
			name: "given 404 status and no cause, then returns not found",
			args: args{status: http.StatusNotFound},
			want: KindNotFound,
		},
		{
			name: "given 500 status and no cause, then returns server error",
			args: args{status: http.StatusInternalServerError},
			want: KindServerError,
		},
		{
			name: "given 403 status and other cause, then returns server error",
			args: args{status: http.StatusForbidden, cause: CauseOther},
			want: KindServerError,
		},
		{
			name: "given no status and no cause, then returns parse failure",
			args: args{},
			want: KindParse,
		},
		{
			name: "given other cause and no status, then returns parse failure",
			args: args{cause: CauseOther},
			want: KindParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.args.status, tt.args.cause))
		})
	}
}

func TestFailure_IsNotFound(t *testing.T) {
	tests := []struct {
		name    string
		failure *Failure
		want    bool
	}{
		{
			name:    "given 404 status, then returns true",
			failure: FromStatus(http.StatusNotFound),
			want:    true,
		},
		{
			name:    "given 404 status with TLS cause, then still returns true",
			failure: &Failure{StatusCode: http.StatusNotFound, Cause: CauseTLS},
			want:    true,
		},
		{
			name:    "given 500 status, then returns false",
			failure: FromStatus(http.StatusInternalServerError),
			want:    false,
		},
		{
			name:    "given no status, then returns false",
			failure: FromError(errors.New("boom")),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.IsNotFound())
		})
	}
}

func TestFailure_NotFoundClassification(t *testing.T) {
	f := FromStatus(http.StatusNotFound)

	assert.True(t, f.IsNotFound())
	assert.Equal(t, KindNotFound, f.Kind())
	assert.Equal(t, MessageKeyNotFound, f.MessageKey())
	assert.Equal(t, "404: not found", f.Message())
}

func TestFailure_ServerErrorWithoutCause(t *testing.T) {
	f := FromStatus(http.StatusInternalServerError)

	assert.Equal(t, KindServerError, f.Kind())
	assert.Equal(t, MessageKeyServerError, f.MessageKey())
	assert.False(t, f.IsNotFound())
}

func TestFailure_ParseFailure(t *testing.T) {
	var v map[string]any
	decodeErr := json.Unmarshal([]byte("{not json"), &v)
	require.Error(t, decodeErr)

	f := FromError(decodeErr)

	assert.Equal(t, CauseOther, f.Cause)
	assert.Equal(t, KindParse, f.Kind())
	assert.Equal(t, MessageKeyParse, f.MessageKey())
}

func TestCauseOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Cause
	}{
		{
			name: "given nil error, then returns none",
			err:  nil,
			want: CauseNone,
		},
		{
			name: "given certificate verification error, then returns tls",
			err: &url.Error{Op: "Get", URL: "https://a.4cdn.org", Err: &tls.CertificateVerificationError{
				Err: x509.UnknownAuthorityError{},
			}},
			want: CauseTLS,
		},
		{
			name: "given expired certificate, then returns tls",
			err:  fmt.Errorf("dial: %w", x509.CertificateInvalidError{Reason: x509.Expired}),
			want: CauseTLS,
		},
		{
			name: "given tls alert, then returns tls",
			err:  fmt.Errorf("handshake: %w", tls.AlertError(40)),
			want: CauseTLS,
		},
		{
			name: "given unexported handshake error from the transport, then returns tls",
			err: &url.Error{Op: "Get", URL: "https://a.4cdn.org", Err: &net.OpError{
				Op: "remote error", Err: errors.New("tls: handshake failure"),
			}},
			want: CauseTLS,
		},
		{
			name: "given refused connection to a url mentioning x509, then returns io",
			err:  &url.Error{Op: "Get", URL: "https://a.4cdn.org/search?q=x509:", Err: syscall.ECONNREFUSED},
			want: CauseIO,
		},
		{
			name: "given decode error mentioning tls, then returns other",
			err:  errors.New(`decode chan4.Thread: field "tls:" invalid`),
			want: CauseOther,
		},
		{
			name: "given deadline exceeded, then returns timeout",
			err:  fmt.Errorf("request: %w", context.DeadlineExceeded),
			want: CauseTimeout,
		},
		{
			name: "given net timeout, then returns timeout",
			err:  &net.DNSError{Err: "i/o timeout", Name: "a.4cdn.org", IsTimeout: true},
			want: CauseTimeout,
		},
		{
			name: "given dns not found, then returns unknown host",
			err: &url.Error{Op: "Get", URL: "https://nope.invalid", Err: &net.OpError{
				Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true},
			}},
			want: CauseUnknownHost,
		},
		{
			name: "given connection refused, then returns io",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			want: CauseIO,
		},
		{
			name: "given truncated body, then returns io",
			err:  fmt.Errorf("read body: %w", io.ErrUnexpectedEOF),
			want: CauseIO,
		},
		{
			name: "given opaque url error, then returns io",
			err:  &url.Error{Op: "Get", URL: "https://a.4cdn.org", Err: errors.New("circuit breaker is open")},
			want: CauseIO,
		},
		{
			name: "given plain error, then returns other",
			err:  errors.New("unexpected field"),
			want: CauseOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CauseOf(tt.err))
		})
	}
}

func TestFailure_ErrorAndUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	f := &Failure{StatusCode: http.StatusBadGateway, Cause: CauseIO, Err: underlying}

	assert.ErrorIs(t, f, underlying)
	assert.Contains(t, f.Error(), "network_failure")
	assert.Contains(t, f.Error(), "502")

	wrapped := fmt.Errorf("load thread: %w", f)
	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, f, got)
}

func TestKind_Localize(t *testing.T) {
	messages := map[string]string{MessageKeyNetwork: "Erreur réseau"}

	assert.Equal(t, "Erreur réseau", KindNetwork.Localize(messages))
	assert.Equal(t, DefaultMessages[MessageKeyTLS], KindTLS.Localize(messages))
}
