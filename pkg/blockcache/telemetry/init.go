package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "blockcache"
	meterName  = "blockcache"

	defaultShutdownTimeoutSec = 5
)

// Config controls how Init wires up tracing, metrics, and logging for a
// cache topology. The zero value is usable: it produces no-op tracer and
// meter providers (no OTLPEndpoint) and a text logger on stderr at the
// default level.
type Config struct {
	// ServiceName identifies the process in exported telemetry.
	ServiceName string

	// Environment tags the deployment, e.g. "prod" or "staging".
	Environment string

	// OTLPEndpoint is the OTLP/gRPC collector address. Empty disables
	// export entirely and falls back to no-op providers.
	OTLPEndpoint string

	// OTLPInsecure disables TLS on the OTLP connection.
	OTLPInsecure bool

	// OTLPHeaders are sent with every OTLP export request, e.g. for
	// collector authentication.
	OTLPHeaders map[string]string

	// SampleRatio is the trace sampling ratio in [0, 1]. Zero selects
	// always-on sampling.
	SampleRatio float64

	// LogJSON selects slog.NewJSONHandler over slog.NewTextHandler.
	LogJSON bool

	// LogLevel is the minimum level the logger emits.
	LogLevel slog.Level

	// ShutdownTimeoutSec bounds how long Shutdown waits for pending
	// telemetry to flush. Zero uses defaultShutdownTimeoutSec.
	ShutdownTimeoutSec int

	// PrometheusAddr, if non-empty, starts an HTTP server on that address
	// serving a /metrics scrape endpoint backed by the same meter provider
	// CacheMetrics reports through, alongside any OTLP export.
	PrometheusAddr string
}

// Providers holds everything a cache topology needs to report telemetry:
// a tracer for spans around block operations, a meter for CacheMetrics,
// and a logger wrapped in TracingHandler.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending telemetry and releases exporter
	// resources. Callers should invoke it once before process exit.
	Shutdown func(ctx context.Context) error
}

type shutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error { return nil }

// Init builds the tracer provider, meter provider, and logger described by
// cfg, and installs the tracer/meter providers as the global OTel
// providers. When cfg.OTLPEndpoint is empty, tracing and metrics run
// entirely as no-ops so a cache can be instrumented unconditionally
// without requiring a collector in tests or local runs.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, tpShutdown, err := buildTracerProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	mp, promRegistry, mpShutdown, err := buildMeterProvider(cfg, res)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), tpShutdown(ctx))
	}

	promShutdown, err := maybeServePrometheus(cfg, promRegistry)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("serve prometheus: %w", err), tpShutdown(ctx), mpShutdown(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(shutdownCtx context.Context) error {
		timeoutDur := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
		if timeoutDur <= 0 {
			timeoutDur = defaultShutdownTimeoutSec * time.Second
		}

		deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeoutDur)
		defer cancel()

		return errors.Join(tpShutdown(deadlineCtx), mpShutdown(deadlineCtx), promShutdown(deadlineCtx))
	}

	return Providers{
		Tracer:   tp.Tracer(tracerName),
		Meter:    mp.Meter(meterName),
		Logger:   buildLogger(cfg),
		Shutdown: shutdown,
	}, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceNameOrDefault(cfg.ServiceName))),
	}

	if cfg.Environment != "" {
		opts = append(opts, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}

	res, err := resource.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

func serviceNameOrDefault(name string) string {
	if name == "" {
		return "blockcache"
	}

	return name
}

func buildTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource,
) (trace.TracerProvider, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)

	return tp, tp.Shutdown, nil
}

func selectSampler(cfg Config) sdktrace.Sampler {
	if cfg.SampleRatio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

// buildMeterProvider assembles a meter provider over every reader cfg asks
// for: a periodic OTLP/gRPC reader when OTLPEndpoint is set, and a
// pull-based Prometheus reader when PrometheusAddr is set. Both can be
// active at once, each on its own registry/collector pipeline, sharing the
// same instruments since CacheMetrics is built from this provider's single
// Meter. Returns a nil *prometheus.Registry when Prometheus export is
// disabled.
func buildMeterProvider(cfg Config, res *resource.Resource) (metric.MeterProvider, *prometheus.Registry, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" && cfg.PrometheusAddr == "" {
		return noopmetric.NewMeterProvider(), nil, noopShutdown, nil
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		reader, err := buildOTLPMetricReader(cfg)
		if err != nil {
			return nil, nil, nil, err
		}

		opts = append(opts, sdkmetric.WithReader(reader))
	}

	var registry *prometheus.Registry

	if cfg.PrometheusAddr != "" {
		registry = prometheus.NewRegistry()

		promReader, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(promReader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	return mp, registry, mp.Shutdown, nil
}

func buildOTLPMetricReader(cfg Config) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlpmetricgrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter), nil
}

// maybeServePrometheus starts an HTTP server on cfg.PrometheusAddr serving
// registry at /metrics, if both are set. The returned shutdownFunc stops
// the server; it is a no-op when Prometheus export is disabled.
func maybeServePrometheus(cfg Config, registry *prometheus.Registry) (shutdownFunc, error) {
	if cfg.PrometheusAddr == "" || registry == nil {
		return noopShutdown, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.PrometheusAddr, Handler: mux, ReadHeaderTimeout: defaultShutdownTimeoutSec * time.Second}

	ln, err := net.Listen("tcp", cfg.PrometheusAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.PrometheusAddr, err)
	}

	go func() {
		_ = srv.Serve(ln)
	}()

	return srv.Shutdown, nil
}

func buildLogger(cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, serviceNameOrDefault(cfg.ServiceName), cfg.Environment))
}
