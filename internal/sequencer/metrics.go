package sequencer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const tracerName = "storefront"

type instruments struct {
	assetDuration metric.Float64Histogram
	failures      metric.Int64Counter
}

// newInstruments falls back to no-op instruments if the meter rejects one.
func newInstruments() instruments {
	meter := otel.Meter(tracerName)
	fallback := noop.NewMeterProvider().Meter(tracerName)

	dur, err := meter.Float64Histogram("storefront.asset.load.duration",
		metric.WithDescription("Time taken to load a single asset"),
		metric.WithUnit("s"),
	)
	if err != nil {
		dur, _ = fallback.Float64Histogram("storefront.asset.load.duration")
	}

	failures, err := meter.Int64Counter("storefront.bootstrap.failures",
		metric.WithDescription("Bootstrap steps that failed, by subsystem"),
	)
	if err != nil {
		failures, _ = fallback.Int64Counter("storefront.bootstrap.failures")
	}

	return instruments{assetDuration: dur, failures: failures}
}
