package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pooledbismuth/poolstats/internal/stats"
	"github.com/pooledbismuth/poolstats/pkg/logging"
)

// Reporter builds the pool reports served by the API.
type Reporter interface {
	AddressSummary(ctx context.Context, address string) (*stats.AddressSummary, error)
	WindowReport(ctx context.Context, hours int) (*stats.WindowReport, error)
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	reporter Reporter
	checks   []HealthCheck
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(reporter Reporter, checks ...HealthCheck) *Router {
	router := &Router{
		handler:  NewJSONRPCHandler(),
		reporter: reporter,
		checks:   checks,
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)

	api := engine.Group("/api")
	api.GET("/balance", r.balanceHandler)
	api.GET("/window", r.windowHandler)
}

func (r *Router) registerMethods() {
	r.handler.RegisterMethod("pool.get_address_summary", r.getAddressSummary)
	r.handler.RegisterMethod("pool.get_window_report", r.getWindowReport)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for _, check := range r.checks {
		if err := check.Check(ctx); err != nil {
			r.logger.Warn("Health check failed", zap.String("dependency", check.Name), zap.Error(err))
			deps[check.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[check.Name] = "OK"
	}

	body := gin.H{
		"status":  "OK",
		"service": "poolstats-api",
	}
	if status != http.StatusOK {
		body["status"] = "DEGRADED"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(status, body)
}
