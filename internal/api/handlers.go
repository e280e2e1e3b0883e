package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"storefront/internal/clients"
	"storefront/internal/orchestrator"
	"storefront/internal/sequencer"
)

// orchestratorService is the subset of *orchestrator.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type orchestratorService interface {
	RunBootstrap(ctx context.Context) (*orchestrator.BootstrapResult, error)
	RunDeepHealth(ctx context.Context) map[string]clients.ProbeResult
	RetryAssets() bool
	IsReady() bool
	IsBootstrapInProgress() bool
	Status() sequencer.Status
	LastResult() *orchestrator.BootstrapResult
	Dependencies() []string
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	orchestrator orchestratorService
}

// Bootstrap handles POST /api/v1/bootstrap.
// It returns 202 immediately when a new bootstrap run is started, or 409 if one
// is already in progress. The actual bootstrap work runs in a background goroutine.
func (h *Handler) Bootstrap(c *gin.Context) {
	if h.orchestrator.IsBootstrapInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	go func() {
		//nolint:errcheck
		h.orchestrator.RunBootstrap(context.Background()) //nolint:contextcheck
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// BootstrapStatus handles GET /api/v1/bootstrap.
// It reports the live sequencer snapshot, the dependencies /health/deep
// probes and the last completed run, if any.
func (h *Handler) BootstrapStatus(c *gin.Context) {
	body := gin.H{
		"inProgress":   h.orchestrator.IsBootstrapInProgress(),
		"sequencer":    h.orchestrator.Status(),
		"dependencies": h.orchestrator.Dependencies(),
	}
	if last := h.orchestrator.LastResult(); last != nil {
		last.Lock()
		body["lastRun"] = gin.H{"status": last.Status, "phases": last.Phases}
		last.Unlock()
	}
	c.JSON(http.StatusOK, body)
}

// RetryAssets handles POST /api/v1/assets/retry.
// It returns 202 when a failed preload was restarted and 409 otherwise.
func (h *Handler) RetryAssets(c *gin.Context) {
	if !h.orchestrator.RetryAssets() {
		c.JSON(http.StatusConflict, gin.H{
			"status": "not-failed",
			"phase":  h.orchestrator.Status().Phase,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It probes every registered dependency and returns 200 only when all are OK;
// otherwise 503 with the failing names listed.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.orchestrator.RunDeepHealth(c.Request.Context())

	failing := make([]string, 0, len(probes))
	for name, p := range probes {
		if !p.OK {
			failing = append(failing, name)
		}
	}

	if len(failing) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dependencies": probes})
		return
	}
	sort.Strings(failing)
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":       "unhealthy",
		"failing":      failing,
		"dependencies": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 once the shell is mounted and its assets are loaded; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	if h.orchestrator.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"ready": false,
		"phase": h.orchestrator.Status().Phase,
	})
}
