package sequencer

// Status values used across Status and AssetResult.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDegraded = "degraded"
	StatusSkipped  = "skipped"
	StatusPending  = "pending"
)

// Status is a point-in-time snapshot of the bootstrap sequence, served by
// the status API and printed by the bootstrap command.
type Status struct {
	Phase         string                 `json:"phase" yaml:"phase"`
	Mounted       bool                   `json:"mounted" yaml:"mounted"`
	Notifications string                 `json:"notifications" yaml:"notifications"` // "ok", "degraded", "skipped", "pending"
	Commerce      string                 `json:"commerce" yaml:"commerce"`
	Assets        map[string]AssetResult `json:"assets,omitempty" yaml:"assets,omitempty"`
	Error         string                 `json:"error,omitempty" yaml:"error,omitempty"`
}
