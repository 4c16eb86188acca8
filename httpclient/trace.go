package httpclient

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// networkTrace holds timing data collected from httptrace.ClientTrace.
// Hooks may fire from the dialer goroutine, hence the mutex.
type networkTrace struct {
	mu sync.Mutex

	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	firstByte                 time.Time

	connReused bool
	tlsVersion uint16
}

// clientTrace returns hooks that populate nt.
func (nt *networkTrace) clientTrace() *httptrace.ClientTrace {
	mark := func(ts *time.Time) {
		nt.mu.Lock()
		*ts = time.Now()
		nt.mu.Unlock()
	}

	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			nt.mu.Lock()
			nt.connReused = info.Reused
			nt.mu.Unlock()
		},
		DNSStart:          func(httptrace.DNSStartInfo) { mark(&nt.dnsStart) },
		DNSDone:           func(httptrace.DNSDoneInfo) { mark(&nt.dnsDone) },
		ConnectStart:      func(_, _ string) { mark(&nt.connectStart) },
		ConnectDone:       func(_, _ string, _ error) { mark(&nt.connectDone) },
		TLSHandshakeStart: func() { mark(&nt.tlsStart) },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.mu.Lock()
			nt.tlsDone = time.Now()
			nt.tlsVersion = state.Version
			nt.mu.Unlock()
		},
		GotFirstResponseByte: func() { mark(&nt.firstByte) },
	}
}

// addTraceEvents adds span events for the phases that happened.
func (nt *networkTrace) addTraceEvents(span trace.Span) {
	if !span.IsRecording() {
		return
	}
	nt.mu.Lock()
	defer nt.mu.Unlock()

	phase := func(name string, start, end time.Time) {
		if start.IsZero() || end.IsZero() {
			return
		}
		span.AddEvent(name, trace.WithTimestamp(end), trace.WithAttributes(
			attribute.Int64(name+".duration_ms", end.Sub(start).Milliseconds()),
		))
	}
	phase("dns", nt.dnsStart, nt.dnsDone)
	phase("connect", nt.connectStart, nt.connectDone)
	phase("tls", nt.tlsStart, nt.tlsDone)

	if !nt.firstByte.IsZero() {
		span.AddEvent("http.first_byte", trace.WithTimestamp(nt.firstByte))
	}
	span.SetAttributes(attribute.Bool("http.connection.reused", nt.connReused))
	if nt.tlsVersion != 0 {
		span.SetAttributes(attribute.String("tls.protocol.version", tls.VersionName(nt.tlsVersion)))
	}
}

// recordTimingMetrics records DNS and TLS durations when measured.
func (nt *networkTrace) recordTimingMetrics(ctx context.Context, m *metrics, attrs []attribute.KeyValue) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		m.recordDNSDuration(ctx, nt.dnsDone.Sub(nt.dnsStart), attrs)
	}
	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		m.recordTLSDuration(ctx, nt.tlsDone.Sub(nt.tlsStart), attrs)
	}
}
