package clients

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state. Each outbound client
// (commerce, notification vendor, store, event bridge) gets its own breaker.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// ProbeResult is the outcome of a single dependency health probe.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// probeResult builds a ProbeResult from the breaker outcome, shortening the
// open-state error to "circuit open".
func probeResult(name string, start time.Time, err error) ProbeResult {
	res := ProbeResult{
		Name:      name,
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			res.Error = "circuit open"
		}
	}
	return res
}
