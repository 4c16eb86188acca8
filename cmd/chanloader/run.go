package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/kroma-labs/chanloader/chan4"
	"github.com/kroma-labs/chanloader/httpcall"
	"github.com/kroma-labs/chanloader/httpclient"
	"github.com/kroma-labs/chanloader/internal/config"
	"github.com/kroma-labs/chanloader/internal/logger"
	"github.com/kroma-labs/chanloader/internal/telemetry"
)

const (
	serviceName    = "chanloader"
	serviceVersion = "1.0.0"
)

var errUsage = errors.New("invalid usage")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(fs, stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		return err
	}

	log, err := logger.NewWithWriter(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := telemetry.NewServer(cfg.MetricsAddr, tel, log)
		ln, err := srv.Listen()
		if err != nil {
			return err
		}
		stopMetrics := serveMetrics(ctx, srv, ln, log)
		defer stopMetrics()
	}

	client, closeClient := newClient(cfg, tel, log)
	defer closeClient()

	site := chan4.NewSite(
		chan4.WithAPIBase(cfg.APIBase),
		chan4.WithSysBase(cfg.SysBase),
		chan4.WithPassID(cfg.PassID),
	)
	registry := httpcall.NewRegistry()
	site.Register(registry)

	manager := httpcall.New(client,
		httpcall.WithRegistry(registry),
		httpcall.WithMaxInFlight(cfg.MaxInFlight),
		httpcall.WithLogger(log),
		httpcall.WithMeterProvider(tel.MeterProvider),
		httpcall.WithTracerProvider(tel.TracerProvider),
	)

	return dispatch(ctx, manager, site, fs.Args(), stdout)
}

// newClient builds the HTTP client from cfg. The returned func releases
// the breaker's Redis connection, if any.
func newClient(cfg *config.Config, tel *telemetry.Telemetry, log zerolog.Logger) (*httpclient.Client, func()) {
	opts := []httpclient.Option{
		httpclient.WithConfig(cfg.HTTPConfig()),
		httpclient.WithServiceName(serviceName),
		httpclient.WithTracerProvider(tel.TracerProvider),
		httpclient.WithMeterProvider(tel.MeterProvider),
		httpclient.WithUserAgent(httpclient.StaticUserAgent(cfg.UserAgent)),
		httpclient.WithRetryConfig(cfg.RetryConfig()),
		httpclient.WithRateLimit(cfg.RateLimitConfig()),
		httpclient.WithLogger(log),
		httpclient.WithDebug(cfg.Debug),
	}

	closeFn := func() {}
	if cfg.BreakerEnabled {
		bc := httpclient.DefaultBreakerConfig()
		if cfg.BreakerRedisAddr != "" {
			rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.BreakerRedisAddr}})
			bc = httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
			closeFn = func() { _ = rdb.Close() }
		}
		opts = append(opts, httpclient.WithBreakerConfig(bc))
	}

	return httpclient.New(opts...), closeFn
}

// serveMetrics runs srv on ln until the returned func is called.
func serveMetrics(ctx context.Context, srv *telemetry.Server, ln net.Listener, log zerolog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ServeListener(ctx, ln); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func dispatch(ctx context.Context, m *httpcall.Manager, site *chan4.Site, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "boards":
		if len(rest) != 0 {
			return fmt.Errorf("%w: boards takes no arguments", errUsage)
		}
		return load(ctx, m, httpcall.Call[[]chan4.Board](site.Boards()), stdout)

	case "catalog":
		if len(rest) != 1 {
			return fmt.Errorf("%w: catalog <board>", errUsage)
		}
		call, err := site.Catalog(rest[0])
		if err != nil {
			return err
		}
		return load(ctx, m, httpcall.Call[[]chan4.CatalogPage](call), stdout)

	case "thread":
		if len(rest) != 2 {
			return fmt.Errorf("%w: thread <board> <no>", errUsage)
		}
		no, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", chan4.ErrInvalidPost, rest[1])
		}
		call, err := site.Thread(rest[0], no)
		if err != nil {
			return err
		}
		return load(ctx, m, httpcall.Call[chan4.Thread](call), stdout)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// load submits call, waits for its callback and writes the value as JSON.
func load[T any](ctx context.Context, m *httpcall.Manager, call httpcall.Call[T], stdout io.Writer) error {
	var res httpcall.Result[T]
	httpcall.Submit(ctx, m, call, func(r httpcall.Result[T]) { res = r })
	m.Wait()

	if !res.OK() {
		return fmt.Errorf("%s: %w", res.Failure.Message(), res.Failure)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Value)
}
