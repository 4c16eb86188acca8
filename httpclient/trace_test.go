package httpclient

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fireHooks drives the client trace the way a fresh TLS connection would.
func fireHooks(ct *httptrace.ClientTrace) {
	ct.DNSStart(httptrace.DNSStartInfo{Host: "a.4cdn.org"})
	ct.DNSDone(httptrace.DNSDoneInfo{})
	ct.ConnectStart("tcp", "104.16.0.1:443")
	ct.ConnectDone("tcp", "104.16.0.1:443", nil)
	ct.TLSHandshakeStart()
	ct.TLSHandshakeDone(tls.ConnectionState{Version: tls.VersionTLS13}, nil)
	ct.GotConn(httptrace.GotConnInfo{Reused: false})
	ct.GotFirstResponseByte()
}

func TestNetworkTrace_AddTraceEvents(t *testing.T) {
	tests := []struct {
		name       string
		fire       bool
		wantEvents []string
		wantTLS    bool
	}{
		{
			name:       "given a full handshake, then adds phase events",
			fire:       true,
			wantEvents: []string{"dns", "connect", "tls", "http.first_byte"},
			wantTLS:    true,
		},
		{
			name: "given no hooks fired, then adds no events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			defer tp.Shutdown(context.Background())

			_, span := tp.Tracer("test").Start(context.Background(), "HTTP GET")
			nt := &networkTrace{}
			if tt.fire {
				fireHooks(nt.clientTrace())
			}

			nt.addTraceEvents(span)
			span.End()

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)

			var names []string
			for _, e := range spans[0].Events {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.wantEvents, names)

			var gotTLS string
			for _, a := range spans[0].Attributes {
				if a.Key == "tls.protocol.version" {
					gotTLS = a.Value.AsString()
				}
			}
			if tt.wantTLS {
				assert.Equal(t, "TLS 1.3", gotTLS)
			} else {
				assert.Empty(t, gotTLS)
			}
		})
	}
}

func TestNetworkTrace_RecordTimingMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := newMetrics(mp.Meter("test"))
	require.NoError(t, err)

	now := time.Now()
	nt := &networkTrace{
		dnsStart: now,
		dnsDone:  now.Add(10 * time.Millisecond),
		tlsStart: now.Add(20 * time.Millisecond),
		tlsDone:  now.Add(50 * time.Millisecond),
	}
	nt.recordTimingMetrics(context.Background(), m, nil)

	got := collect(t, reader)
	assert.Contains(t, got, "http.client.dns.duration")
	assert.Contains(t, got, "http.client.tls.duration")

	assert.NotPanics(t, func() {
		(&networkTrace{dnsStart: now, dnsDone: now}).recordTimingMetrics(context.Background(), nil, nil)
	})
}
