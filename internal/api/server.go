package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Asset retry budget: one per second, bursts of three.
const (
	retryEvery = time.Second
	retryBurst = 3
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Callers pick the gin mode. Middleware order:
//  1. Recovery, panic to 500
//  2. Tracing, trace context per request
//  3. RequestLogger, structured request/response logging
func NewRouter(o orchestratorService, serviceName string) *Router {
	engine := gin.New()

	engine.Use(Recovery(slog.Default()))
	engine.Use(Tracing(serviceName))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{orchestrator: o}

	v1 := engine.Group("/api/v1")
	v1.GET("/bootstrap", h.BootstrapStatus)
	v1.POST("/bootstrap", h.Bootstrap)
	v1.POST("/assets/retry", RateLimit(rate.NewLimiter(rate.Every(retryEvery), retryBurst)), h.RetryAssets)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
