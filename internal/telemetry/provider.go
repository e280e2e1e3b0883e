package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"storefront/internal/config"
)

// Version is reported as service.version on every span and metric.
var Version = "0.1.0"

const defaultMetricInterval = 10 * time.Second

// Provider owns the exporters installed as the global OTEL providers.
// The zero value (telemetry disabled) is safe to shut down.
type Provider struct {
	closers []func(context.Context) error
}

// Enabled reports whether anything is being exported.
func (p *Provider) Enabled() bool {
	return p != nil && len(p.closers) > 0
}

// InitProvider wires OTLP/gRPC trace and metric exporters to the collector
// named in cfg. An empty endpoint leaves the global no-op providers in place.
// The dial is non-blocking, so an unreachable collector does not prevent
// startup.
func InitProvider(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	p := &Provider{}
	if cfg.OTLPEndpoint == "" {
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			semconv.ServiceNamespace("storefront"),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building OTEL resource: %w", err)
	}

	var dialOpts []grpc.DialOption
	if cfg.OTLPInsecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(cfg.OTLPEndpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gRPC client for OTEL: %w", err)
	}
	// Closed last, after both exporters have flushed through it.
	p.closers = append(p.closers, func(context.Context) error { return conn.Close() })

	tp, err := newTracerProvider(ctx, conn, res, cfg.SampleRatio)
	if err != nil {
		p.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}
	p.closers = append(p.closers, tp.Shutdown)

	mp, err := newMeterProvider(ctx, conn, res, cfg.MetricInterval)
	if err != nil {
		p.Shutdown(ctx) //nolint:errcheck
		return nil, err
	}
	p.closers = append(p.closers, mp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetMeterProvider(mp)

	// The SDK retries failed exports; surface them at WARN only.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Warn("otel export error (will retry)", "err", err)
	}))

	return p, nil
}

func newTracerProvider(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource, ratio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(ratio)),
	), nil
}

func newMeterProvider(ctx context.Context, conn *grpc.ClientConn, res *resource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	), nil
}

// sampler samples everything unless a ratio in (0, 1) is configured.
// Child spans follow their parent's decision.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Shutdown flushes and closes the exporters in reverse order of creation.
// Export errors on shutdown are dropped; only a leaked connection is
// reported. ctx should have a deadline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var connErr error
	for i := len(p.closers) - 1; i >= 0; i-- {
		err := p.closers[i](ctx)
		if i == 0 {
			connErr = err
		}
	}
	p.closers = nil
	if connErr != nil && !errors.Is(connErr, context.Canceled) {
		return connErr
	}
	return nil
}
