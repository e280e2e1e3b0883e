package sequencer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
)

// DefaultAssets is the preload list: two custom fonts followed by the icon
// font families. "Material Design Icons" is an alias of the
// MaterialCommunityIcons file.
var DefaultAssets = []Asset{
	{Name: "OpenSans", File: "fonts/OpenSans-Regular.ttf"},
	{Name: "Baloo", File: "fonts/Baloo-Regular.ttf"},
	{Name: "Entypo", File: "vector-icons/Entypo.ttf"},
	{Name: "Material Icons", File: "vector-icons/MaterialIcons.ttf"},
	{Name: "MaterialCommunityIcons", File: "vector-icons/MaterialCommunityIcons.ttf"},
	{Name: "Material Design Icons", File: "vector-icons/MaterialCommunityIcons.ttf"},
	{Name: "FontAwesome", File: "vector-icons/FontAwesome.ttf"},
	{Name: "simple-line-icons", File: "vector-icons/SimpleLineIcons.ttf"},
	{Name: "Ionicons", File: "vector-icons/Ionicons.ttf"},
}

// AssetResult is the outcome of loading one asset.
type AssetResult struct {
	Name      string `json:"name" yaml:"name"`
	Status    string `json:"status" yaml:"status"` // "ok", "error", "skipped"
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs" yaml:"latencyMs"`
}

// LoadReport is the aggregate result of LoadAssets.
// sync.Mutex is embedded so loads can record results concurrently.
type LoadReport struct {
	sync.Mutex
	Results map[string]AssetResult `json:"results"`
}

// Failed returns the names of assets that did not load.
func (r *LoadReport) Failed() []string {
	r.Lock()
	defer r.Unlock()
	var out []string
	for _, a := range r.Results {
		if a.Status == StatusError {
			out = append(out, a.Name)
		}
	}
	return out
}

func (r *LoadReport) record(res AssetResult) {
	r.Lock()
	r.Results[res.Name] = res
	r.Unlock()
}

// LoadAssets issues one load per asset concurrently and waits for all of
// them. Under the "all" policy any failure fails the whole preload and
// cancels the loads still running; under "partial" failures are logged and
// reported but the preload succeeds.
func (s *Sequencer) LoadAssets(ctx context.Context) (*LoadReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "storefront.load_assets")
	defer span.End()

	if s.settings.AssetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.AssetTimeout)
		defer cancel()
	}

	report := &LoadReport{Results: make(map[string]AssetResult, len(s.assets))}
	strict := s.settings.AssetPolicy != config.AssetPolicyPartial

	g, gctx := errgroup.WithContext(ctx)
	if !strict {
		// Keep sibling loads running when one fails.
		g = &errgroup.Group{}
		gctx = ctx
	}

	for _, a := range s.assets {
		g.Go(func() error {
			start := time.Now()
			err := s.loader.Load(gctx, a)
			elapsed := time.Since(start)
			s.metrics.assetDuration.Record(gctx, elapsed.Seconds(),
				metric.WithAttributes(attribute.String("asset", a.Name), attribute.Bool("ok", err == nil)))

			res := AssetResult{Name: a.Name, Status: StatusOK, LatencyMs: elapsed.Milliseconds()}
			if err != nil {
				res.Status = StatusError
				res.Error = err.Error()
				report.record(res)
				slog.WarnContext(gctx, "asset load failed", "asset", a.Name, "file", a.File, "error", err)
				if strict {
					return assetLoadFailed(a, err)
				}
				return nil
			}
			report.record(res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, "asset preload failed")
		return report, err
	}

	if failed := report.Failed(); len(failed) > 0 {
		span.SetAttributes(attribute.StringSlice("assets.failed", failed))
		slog.WarnContext(ctx, "assets preloaded with failures", "failed", failed)
	} else {
		slog.InfoContext(ctx, "assets preloaded", "count", len(s.assets))
	}
	span.SetStatus(codes.Ok, "")
	return report, nil
}
