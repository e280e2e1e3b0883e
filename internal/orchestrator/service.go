package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"storefront/internal/clients"
	"storefront/internal/sequencer"
)

// ErrBootstrapInProgress is returned when RunBootstrap is called while a
// bootstrap is already running.
var ErrBootstrapInProgress = errors.New("bootstrap already in progress")

// Sequencer is satisfied by *sequencer.Sequencer.
type Sequencer interface {
	Mount(ctx context.Context) error
	Render() sequencer.Frame
	Retry() bool
	Settled() <-chan struct{}
	IsReady() bool
	Status() sequencer.Status
}

// Prober is satisfied by every client in the clients package.
type Prober interface {
	Probe(ctx context.Context) clients.ProbeResult
}

// Orchestrator drives the sequencer without a UI attached and aggregates
// dependency probes for the status API.
type Orchestrator struct {
	seq     Sequencer
	probers map[string]Prober

	bootstrapInProgress atomic.Bool
	lastResult          *BootstrapResult
	resultMu            sync.RWMutex
}

// New constructs an Orchestrator. probers is keyed by the dependency name
// reported from RunDeepHealth; nil entries are skipped.
func New(seq Sequencer, probers map[string]Prober) *Orchestrator {
	ps := make(map[string]Prober, len(probers))
	for name, p := range probers {
		if p != nil {
			ps[name] = p
		}
	}
	return &Orchestrator{seq: seq, probers: ps}
}

// RunBootstrap mounts the sequencer and then renders until the asset preload
// settles, retrying once if a previous attempt had failed. Mount is
// idempotent on the sequencer, so calling this again after a failure only
// repeats the preload. Returns ErrBootstrapInProgress if a run is active.
func (o *Orchestrator) RunBootstrap(ctx context.Context) (*BootstrapResult, error) {
	if !o.bootstrapInProgress.CompareAndSwap(false, true) {
		return nil, ErrBootstrapInProgress
	}
	defer o.bootstrapInProgress.Store(false)

	result := &BootstrapResult{
		Status: StatusInProgress,
		Phases: make(map[string]PhaseResult, 2),
	}

	ctx, span := otel.Tracer("storefront").Start(ctx, "storefront.bootstrap")
	defer span.End()

	slog.InfoContext(ctx, "bootstrap started")

	mount := errToPhase(PhaseMount, o.seq.Mount(ctx))
	logPhase(ctx, mount)
	result.record(mount)

	if mount.Status == StatusOK {
		assets := o.preload(ctx)
		logPhase(ctx, assets)
		result.record(assets)
	} else {
		result.record(PhaseResult{Name: PhaseAssets, Status: StatusSkipped})
	}

	result.Lock()
	result.Status = StatusOK
	for _, phase := range result.Phases {
		if phase.Status == StatusError {
			result.Status = StatusError
			break
		}
	}
	result.Sequencer = o.seq.Status()
	status := result.Status
	result.Unlock()

	span.SetAttributes(attribute.String("bootstrap.status", status))
	if status == StatusError {
		span.SetStatus(codes.Error, "bootstrap failed")
		slog.WarnContext(ctx, "bootstrap completed with errors", "status", status)
	} else {
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "bootstrap completed", "status", status)
	}

	o.resultMu.Lock()
	o.lastResult = result
	o.resultMu.Unlock()

	return result, nil
}

func (o *Orchestrator) preload(ctx context.Context) PhaseResult {
	frame := o.seq.Render()
	if frame.View == sequencer.ViewFailed && o.seq.Retry() {
		frame = o.seq.Render()
	}
	for frame.View == sequencer.ViewLoading {
		select {
		case <-o.seq.Settled():
		case <-ctx.Done():
			return errToPhase(PhaseAssets, ctx.Err())
		}
		frame = o.seq.Render()
	}
	return errToPhase(PhaseAssets, frame.Err)
}

// RetryAssets restarts a failed preload in the background. It reports false
// when the preload was not in the failed phase.
func (o *Orchestrator) RetryAssets() bool {
	if !o.seq.Retry() {
		return false
	}
	o.seq.Render()
	return true
}

// RunDeepHealth probes every registered dependency concurrently and returns
// a map of dependency name to ProbeResult.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]clients.ProbeResult {
	results := make(map[string]clients.ProbeResult, len(o.probers))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range o.probers {
		g.Go(func() error {
			probe := p.Probe(ctx)
			mu.Lock()
			results[name] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Dependencies lists the names RunDeepHealth reports on, sorted.
func (o *Orchestrator) Dependencies() []string {
	names := make([]string, 0, len(o.probers))
	for name := range o.probers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsBootstrapInProgress returns true while a bootstrap run is active.
func (o *Orchestrator) IsBootstrapInProgress() bool {
	return o.bootstrapInProgress.Load()
}

// IsReady returns true once the sequencer is mounted and its assets loaded,
// whichever path (bootstrap run or UI render) got it there.
func (o *Orchestrator) IsReady() bool {
	return o.seq.IsReady() && o.seq.Status().Mounted
}

// Status returns the live sequencer snapshot.
func (o *Orchestrator) Status() sequencer.Status {
	return o.seq.Status()
}

// LastResult returns the most recent bootstrap result, or nil.
func (o *Orchestrator) LastResult() *BootstrapResult {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult
}

// logPhase emits a trace-correlated log for a bootstrap phase result.
func logPhase(ctx context.Context, p PhaseResult) {
	if p.Status == StatusOK {
		slog.InfoContext(ctx, "bootstrap phase ok", "phase", p.Name)
		return
	}
	slog.WarnContext(ctx, "bootstrap phase failed", "phase", p.Name, "error", p.Error)
}

func errToPhase(name string, err error) PhaseResult {
	if err == nil {
		return PhaseResult{Name: name, Status: StatusOK}
	}
	return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
}
