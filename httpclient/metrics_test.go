package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMetrics(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer mp.Shutdown(context.Background())

	m, err := newMetrics(mp.Meter("test"))

	require.NoError(t, err)
	assert.NotNil(t, m.requestDuration)
	assert.NotNil(t, m.activeRequests)
	assert.NotNil(t, m.requestErrors)
	assert.NotNil(t, m.dnsDuration)
	assert.NotNil(t, m.tlsDuration)
	assert.NotNil(t, m.retryAttempts)
	assert.NotNil(t, m.retryExhausted)
	assert.NotNil(t, m.breakerRequests)
	assert.NotNil(t, m.breakerState)
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := newMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	attrs := []attribute.KeyValue{attribute.String("server.address", "a.4cdn.org")}

	m.recordRequestDuration(ctx, 250*time.Millisecond, attrs)
	m.recordActiveRequestStart(ctx, attrs)
	m.recordActiveRequestStart(ctx, attrs)
	m.recordActiveRequestEnd(ctx, attrs)
	m.recordError(ctx, "network_failure", attrs)
	m.recordRetryAttempt(ctx, attrs, 1)
	m.recordRetryExhausted(ctx, attrs)
	m.recordBreakerRequest(ctx, "chanloader", "rejected")
	m.recordBreakerState(ctx, "chanloader", 2)

	got := collect(t, reader)

	duration, ok := got["http.client.request.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)

	active, ok := got["http.client.active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(1), active.DataPoints[0].Value)

	errs, ok := got["http.client.errors"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	kind, _ := errs.DataPoints[0].Attributes.Value("error.type")
	assert.Equal(t, "network_failure", kind.AsString())

	retries, ok := got["http.client.retry.attempts"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	attempt, _ := retries.DataPoints[0].Attributes.Value("retry.attempt")
	assert.Equal(t, int64(1), attempt.AsInt64())

	breaker, ok := got["http.client.breaker.requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	outcome, _ := breaker.DataPoints[0].Attributes.Value("breaker.outcome")
	assert.Equal(t, "rejected", outcome.AsString())

	state, ok := got["http.client.breaker.state"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), state.DataPoints[0].Value)
}

func TestMetricsNilSafety(t *testing.T) {
	var m *metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.recordRequestDuration(ctx, time.Second, nil)
		m.recordActiveRequestStart(ctx, nil)
		m.recordActiveRequestEnd(ctx, nil)
		m.recordError(ctx, "parse_failure", nil)
		m.recordDNSDuration(ctx, time.Second, nil)
		m.recordTLSDuration(ctx, time.Second, nil)
		m.recordRetryAttempt(ctx, nil, 1)
		m.recordRetryExhausted(ctx, nil)
		m.recordBreakerRequest(ctx, "b", "success")
		m.recordBreakerState(ctx, "b", 0)
	})
}
