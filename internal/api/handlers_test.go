package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"storefront/internal/clients"
	"storefront/internal/orchestrator"
	"storefront/internal/sequencer"
)

// noopLogger returns a slog.Logger that discards all output.
func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeOrchestrator is a test double that implements orchestratorService.
type fakeOrchestrator struct {
	inProgress   bool
	ready        bool
	retryOK      bool
	status       sequencer.Status
	last         *orchestrator.BootstrapResult
	deepProbes   map[string]clients.ProbeResult
	bootstrapErr error
	// bootstrapDelay simulates slow bootstrap so async tests can verify 202.
	bootstrapDelay time.Duration
	retries        atomic.Int32
}

func (f *fakeOrchestrator) IsBootstrapInProgress() bool { return f.inProgress }
func (f *fakeOrchestrator) IsReady() bool               { return f.ready }
func (f *fakeOrchestrator) Status() sequencer.Status    { return f.status }

func (f *fakeOrchestrator) LastResult() *orchestrator.BootstrapResult { return f.last }

func (f *fakeOrchestrator) Dependencies() []string { return []string{"commerce", "store"} }

func (f *fakeOrchestrator) RetryAssets() bool {
	f.retries.Add(1)
	return f.retryOK
}

func (f *fakeOrchestrator) RunBootstrap(_ context.Context) (*orchestrator.BootstrapResult, error) {
	if f.bootstrapDelay > 0 {
		time.Sleep(f.bootstrapDelay)
	}
	if f.bootstrapErr != nil {
		return nil, f.bootstrapErr
	}
	return &orchestrator.BootstrapResult{
		Status: orchestrator.StatusOK,
		Phases: map[string]orchestrator.PhaseResult{},
	}, nil
}

func (f *fakeOrchestrator) RunDeepHealth(_ context.Context) map[string]clients.ProbeResult {
	if f.deepProbes != nil {
		return f.deepProbes
	}
	return map[string]clients.ProbeResult{}
}

// newTestEngine builds a minimal Gin engine with only the given handler and
// no middleware, for isolated handler testing.
func newTestEngine(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, h)
	return r
}

func serve(engine http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

// --- Bootstrap handler ---

func TestBootstrap_202WhenNotRunning(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{inProgress: false, bootstrapDelay: 50 * time.Millisecond}
	handler := &Handler{orchestrator: fake}

	w := serve(newTestEngine(http.MethodPost, "/api/v1/bootstrap", handler.Bootstrap), http.MethodPost, "/api/v1/bootstrap")

	assert.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "accepted", body["status"])
}

func TestBootstrap_409WhenInProgress(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{inProgress: true}
	handler := &Handler{orchestrator: fake}

	w := serve(newTestEngine(http.MethodPost, "/api/v1/bootstrap", handler.Bootstrap), http.MethodPost, "/api/v1/bootstrap")

	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "in-progress", body["status"])
}

func TestBootstrapStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fake        *fakeOrchestrator
		wantLastRun bool
	}{
		{
			name: "before any run",
			fake: &fakeOrchestrator{status: sequencer.Status{Phase: sequencer.PhaseLoading, Commerce: sequencer.StatusPending}},
		},
		{
			name: "after a failed run",
			fake: &fakeOrchestrator{
				status: sequencer.Status{Phase: sequencer.PhaseFailed, Mounted: true, Error: "font missing"},
				last: &orchestrator.BootstrapResult{
					Status: orchestrator.StatusError,
					Phases: map[string]orchestrator.PhaseResult{
						orchestrator.PhaseAssets: {Name: orchestrator.PhaseAssets, Status: orchestrator.StatusError, Error: "font missing"},
					},
				},
			},
			wantLastRun: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := &Handler{orchestrator: tc.fake}
			w := serve(newTestEngine(http.MethodGet, "/api/v1/bootstrap", handler.BootstrapStatus), http.MethodGet, "/api/v1/bootstrap")
			require.Equal(t, http.StatusOK, w.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))

			seq, ok := body["sequencer"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.fake.status.Phase, seq["phase"])
			assert.Equal(t, []any{"commerce", "store"}, body["dependencies"])

			lastRun, hasLast := body["lastRun"].(map[string]any)
			assert.Equal(t, tc.wantLastRun, hasLast)
			if tc.wantLastRun {
				assert.Equal(t, "error", lastRun["status"])
			}
		})
	}
}

// --- RetryAssets handler ---

func TestRetryAssets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		retryOK  bool
		wantCode int
	}{
		{name: "failed preload restarted", retryOK: true, wantCode: http.StatusAccepted},
		{name: "nothing to retry", retryOK: false, wantCode: http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeOrchestrator{retryOK: tc.retryOK, status: sequencer.Status{Phase: sequencer.PhaseReady}}
			handler := &Handler{orchestrator: fake}

			w := serve(newTestEngine(http.MethodPost, "/api/v1/assets/retry", handler.RetryAssets), http.MethodPost, "/api/v1/assets/retry")
			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, int32(1), fake.retries.Load())
		})
	}
}

func TestRateLimit_429WhenExhausted(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.POST("/limited", RateLimit(rate.NewLimiter(rate.Every(time.Hour), 2)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodPost, "/limited").Code)
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodPost, "/limited").Code)

	w := serve(engine, http.MethodPost, "/limited")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

// --- Health handler ---

func TestHealth_AlwaysReturns200(t *testing.T) {
	t.Parallel()

	handler := &Handler{orchestrator: &fakeOrchestrator{}}
	w := serve(newTestEngine(http.MethodGet, "/health", handler.Health), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "shallow", body["mode"])
}

// --- DeepHealth handler ---

func TestDeepHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		probes      map[string]clients.ProbeResult
		wantCode    int
		wantStatus  string
		wantFailing []any
	}{
		{
			name: "all healthy",
			probes: map[string]clients.ProbeResult{
				"commerce": {Name: "commerce", OK: true},
				"store":    {Name: "store", OK: true},
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "one unhealthy",
			probes: map[string]clients.ProbeResult{
				"commerce":     {Name: "commerce", OK: true},
				"event-bridge": {Name: "event-bridge", OK: false, Error: "nats: connection closed"},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  "unhealthy",
			wantFailing: []any{"event-bridge"},
		},
		{
			name: "all unhealthy",
			probes: map[string]clients.ProbeResult{
				"commerce": {Name: "commerce", OK: false, Error: "circuit open"},
				"store":    {Name: "store", OK: false, Error: "timeout"},
			},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  "unhealthy",
			wantFailing: []any{"commerce", "store"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			handler := &Handler{orchestrator: &fakeOrchestrator{deepProbes: tc.probes}}
			w := serve(newTestEngine(http.MethodGet, "/health/deep", handler.DeepHealth), http.MethodGet, "/health/deep")

			assert.Equal(t, tc.wantCode, w.Code)

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tc.wantStatus, body["status"])
			deps, ok := body["dependencies"].(map[string]any)
			require.True(t, ok)
			assert.Len(t, deps, len(tc.probes))
			if tc.wantFailing != nil {
				assert.Equal(t, tc.wantFailing, body["failing"])
			} else {
				assert.NotContains(t, body, "failing")
			}
		})
	}
}

// --- Ready handler ---

func TestReady_503BeforeBootstrap(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{ready: false, status: sequencer.Status{Phase: sequencer.PhaseLoading}}
	handler := &Handler{orchestrator: fake}
	w := serve(newTestEngine(http.MethodGet, "/ready", handler.Ready), http.MethodGet, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "loading", body["phase"])
}

func TestReady_200AfterBootstrap(t *testing.T) {
	t.Parallel()

	handler := &Handler{orchestrator: &fakeOrchestrator{ready: true}}
	w := serve(newTestEngine(http.MethodGet, "/ready", handler.Ready), http.MethodGet, "/ready")

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, true, body["ready"])
}

// --- Recovery middleware ---

func TestRecoveryMiddleware_Returns500OnPanic(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(Recovery(noopLogger()))
	engine.GET("/panic", func(c *gin.Context) {
		panic("intentional test panic")
	})

	w := serve(engine, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
}

// --- NewRouter smoke test ---

func TestNewRouter_RoutesRegistered(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{ready: true, retryOK: true, deepProbes: map[string]clients.ProbeResult{
		"commerce": {Name: "commerce", OK: true},
	}}
	router := NewRouter(fake, "storefront-test")

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/deep", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/bootstrap", http.StatusOK},
		{http.MethodPost, "/api/v1/bootstrap", http.StatusAccepted},
		{http.MethodPost, "/api/v1/assets/retry", http.StatusAccepted},
		{http.MethodGet, "/api-docs", http.StatusNotFound},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(""))
		router.Handler().ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "route %s %s", tc.method, tc.path)
	}
}

// --- RequestLogger ---

func TestRequestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/v1/bootstrap", http.StatusAccepted, slog.LevelInfo},
		{"/health", http.StatusOK, slog.LevelDebug},
		{"/ready", http.StatusServiceUnavailable, slog.LevelDebug},
		{"/api/v1/assets/retry", http.StatusConflict, slog.LevelWarn},
		{"/api/v1/assets/retry", http.StatusTooManyRequests, slog.LevelWarn},
		{"/api/v1/bootstrap", http.StatusInternalServerError, slog.LevelError},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, requestLevel(tc.path, tc.status), "%s %d", tc.path, tc.status)
	}
}
