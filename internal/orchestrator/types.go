package orchestrator

import (
	"sync"

	"storefront/internal/sequencer"
)

// Status values used across BootstrapResult and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// Phase names recorded in BootstrapResult.
const (
	PhaseMount  = "mount"
	PhaseAssets = "assets"
)

// BootstrapResult is the aggregate result of a headless bootstrap run.
// Callers must hold the mutex before marshalling while a run is active.
type BootstrapResult struct {
	sync.Mutex
	Status    string                 `json:"status"` // "ok", "error", "in-progress"
	Phases    map[string]PhaseResult `json:"phases"`
	Sequencer sequencer.Status       `json:"sequencer"`
}

// PhaseResult represents the outcome of a single bootstrap phase.
type PhaseResult struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"` // "ok", "error", "skipped"
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *BootstrapResult) record(p PhaseResult) {
	r.Lock()
	r.Phases[p.Name] = p
	r.Unlock()
}
