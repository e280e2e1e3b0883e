package sequencer

import "sync"

// Phase values for the readiness gate.
const (
	PhaseLoading = "loading"
	PhaseReady   = "ready"
	PhaseFailed  = "failed"
)

// ReadinessGate holds the appIsReady flag. It starts in loading, moves to
// ready exactly once and never leaves it. A failed preload moves it to failed,
// from which Reset returns it to loading.
type ReadinessGate struct {
	mu      sync.Mutex
	phase   string
	err     error
	settled chan struct{}
}

func NewReadinessGate() *ReadinessGate {
	return &ReadinessGate{
		phase:   PhaseLoading,
		settled: make(chan struct{}),
	}
}

// MarkReady flips the gate to ready. It reports false when the gate was not
// loading.
func (g *ReadinessGate) MarkReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseLoading {
		return false
	}
	g.phase = PhaseReady
	close(g.settled)
	return true
}

// Fail records a preload failure. Only valid while loading.
func (g *ReadinessGate) Fail(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseLoading {
		return false
	}
	g.phase = PhaseFailed
	g.err = err
	close(g.settled)
	return true
}

// Reset moves a failed gate back to loading.
func (g *ReadinessGate) Reset() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseFailed {
		return false
	}
	g.phase = PhaseLoading
	g.err = nil
	g.settled = make(chan struct{})
	return true
}

func (g *ReadinessGate) Phase() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *ReadinessGate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// IsReady is the appIsReady flag.
func (g *ReadinessGate) IsReady() bool {
	return g.Phase() == PhaseReady
}

// Settled is closed when the current loading attempt ends, either way.
func (g *ReadinessGate) Settled() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settled
}
