package httpcall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/kroma-labs/chanloader/failure"
)

const scope = "github.com/kroma-labs/chanloader/httpcall"

// DefaultMaxInFlight bounds the number of calls executing at once.
const DefaultMaxInFlight = 64

// Doer sends an HTTP request. *httpclient.Client and *http.Client both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager submits calls over a shared Doer. It is safe for concurrent use
// and holds no per-call state.
type Manager struct {
	doer     Doer
	registry *Registry
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	logger   zerolog.Logger
	tracer   trace.Tracer

	submitted metric.Int64Counter
	failed    metric.Int64Counter
}

type managerConfig struct {
	registry       *Registry
	maxInFlight    int64
	logger         zerolog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithRegistry sets the registry consulted for site modifiers.
func WithRegistry(r *Registry) Option {
	return func(c *managerConfig) {
		c.registry = r
	}
}

// WithMaxInFlight bounds concurrently executing calls. Submit never blocks;
// calls over the bound wait in the background.
func WithMaxInFlight(n int64) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = l
	}
}

// WithMeterProvider sets the MeterProvider. The global one is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *managerConfig) {
		c.meterProvider = mp
	}
}

// WithTracerProvider sets the TracerProvider. The global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *managerConfig) {
		c.tracerProvider = tp
	}
}

// New creates a Manager sending requests through doer.
func New(doer Doer, opts ...Option) *Manager {
	cfg := managerConfig{
		maxInFlight:    DefaultMaxInFlight,
		logger:         zerolog.Nop(),
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}

	meter := cfg.meterProvider.Meter(scope)
	// Instruments fall back to no-ops when registration fails.
	submitted, err := meter.Int64Counter("chanloader.calls.submitted",
		metric.WithDescription("Number of submitted calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		submitted, _ = noop.Meter{}.Int64Counter("chanloader.calls.submitted")
	}
	failed, err := meter.Int64Counter("chanloader.calls.failed",
		metric.WithDescription("Number of failed calls by failure kind"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		failed, _ = noop.Meter{}.Int64Counter("chanloader.calls.failed")
	}

	return &Manager{
		doer:      doer,
		registry:  cfg.registry,
		sem:       semaphore.NewWeighted(cfg.maxInFlight),
		logger:    cfg.logger,
		tracer:    cfg.tracerProvider.Tracer(scope),
		submitted: submitted,
		failed:    failed,
	}
}

// Registry returns the registry of site modifiers.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Wait blocks until every call submitted so far has delivered its result.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// SubmitOption configures a single submission.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	progress ProgressListener
}

// WithProgress reports upload progress of the request body to l.
func WithProgress(l ProgressListener) SubmitOption {
	return func(c *submitConfig) {
		c.progress = l
	}
}

// Submit prepares call and executes it in the background. cb is invoked
// exactly once, on a background goroutine, with the parsed value or a
// classified failure. Submit never blocks.
//
// The request is built as a GET to call.Target(), set up by call.Setup and
// then passed to the RequestModifier registered for call.Site(). Errors in
// any of these steps are delivered through cb without sending anything.
//
// Cancelling ctx does not abort the call; ctx only carries values such as
// the trace.
func Submit[T any](ctx context.Context, m *Manager, call Call[T], cb Callback[T], opts ...SubmitOption) {
	var sc submitConfig
	for _, opt := range opts {
		opt(&sc)
	}

	ctx = context.WithoutCancel(ctx)
	site := call.Site()
	logger := m.logger.With().
		Str("call_id", uuid.NewString()).
		Str("site", site).
		Logger()

	m.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("site", site)))
	m.wg.Add(1)

	req, err := prepare(ctx, m, call, sc)

	go func() {
		defer m.wg.Done()

		var res Result[T]
		if err != nil {
			res.Failure = &failure.Failure{Cause: failure.CauseOther, Err: err}
		} else {
			res = execute(m, req, call, logger)
		}

		if res.Failure != nil {
			m.failed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("site", site),
				attribute.String("kind", res.Failure.Kind().String()),
			))
			logger.Warn().Err(res.Failure.Err).
				Str("kind", res.Failure.Kind().String()).
				Int("status", res.Failure.StatusCode).
				Msg("call failed")
		}

		cb(res)
	}()
}

// prepare builds the request: target, Setup, site modifier, then progress.
// A panic in any of them becomes an error so the callback still fires.
func prepare[T any](ctx context.Context, m *Manager, call Call[T], sc submitConfig) (req *http.Request, err error) {
	defer func() {
		if r := recover(); r != nil {
			req, err = nil, &callPanic{stage: "preparing request", value: r}
		}
	}()

	target, err := call.Target()
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, ErrNoTarget
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if err := call.Setup(req); err != nil {
		return nil, fmt.Errorf("setup request: %w", err)
	}

	if mod, ok := m.registry.Lookup(call.Site()); ok {
		if err := mod.ModifyRequest(req); err != nil {
			return nil, fmt.Errorf("modify request for %s: %w", call.Site(), err)
		}
	}

	trackProgress(req, sc.progress)
	return req, nil
}

// execute sends req once the semaphore admits it and turns the outcome into
// a Result.
func execute[T any](m *Manager, req *http.Request, call Call[T], logger zerolog.Logger) Result[T] {
	// Acquire cannot fail: the context is never cancelled.
	_ = m.sem.Acquire(req.Context(), 1)
	defer m.sem.Release(1)

	// The span starts after admission so queueing is not call latency.
	ctx, span := m.tracer.Start(req.Context(), "httpcall "+req.Method,
		trace.WithAttributes(
			attribute.String("site", call.Site()),
			attribute.String("url.full", req.URL.String()),
		),
	)
	defer span.End()

	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("dispatching call")

	res := roundTrip(m.doer, req.WithContext(ctx), call)
	if res.Failure != nil {
		span.SetStatus(codes.Error, res.Failure.Kind().String())
		span.SetAttributes(attribute.String("error.type", res.Failure.Kind().String()))
	}
	return res
}

func roundTrip[T any](doer Doer, req *http.Request, call Call[T]) Result[T] {
	resp, err := doer.Do(req)
	if err != nil {
		return Result[T]{Failure: failure.FromError(err)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result[T]{Failure: failure.FromStatus(resp.StatusCode)}
	}

	v, err := parse(call, resp)
	if err != nil {
		return Result[T]{Failure: failure.FromError(err)}
	}
	return Result[T]{Value: v}
}

// parse runs call.Parse, turning a panic into a parse failure.
func parse[T any](call Call[T], resp *http.Response) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &callPanic{stage: "parsing response", value: r}
		}
	}()
	return call.Parse(resp)
}

type callPanic struct {
	stage string
	value any
}

func (p *callPanic) Error() string {
	return fmt.Sprintf("panic while %s: %v", p.stage, p.value)
}
