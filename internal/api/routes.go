package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Taff4/conciliador-notas/internal/config"
	"github.com/Taff4/conciliador-notas/internal/matcher"
	"github.com/Taff4/conciliador-notas/internal/metrics"
)

// Searcher is the search capability the handlers need; *matcher.Searcher
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, req matcher.Request, sink matcher.ProgressSink) (matcher.Result, error)
}

// APIHandler serves the reconciliation endpoints.
type APIHandler struct {
	searcher Searcher
	metrics  *metrics.Recorder
	policy   config.Matcher
	upgrader *websocket.Upgrader
	log      *zerolog.Logger
}

// Deps bundles what SetupRouter wires together.
type Deps struct {
	Config   config.Config
	Searcher Searcher
	Metrics  *metrics.Recorder
	Limiter  *RateLimiter
	Log      *zerolog.Logger
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(d Deps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(d.Log))
	r.Use(CORS(d.Config.AllowedOrigins))

	h := &APIHandler{
		searcher: d.Searcher,
		metrics:  d.Metrics,
		policy:   d.Config.Matcher,
		upgrader: newUpgrader(d.Config.AllowedOrigins),
		log:      d.Log,
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", h.handleHealth)
		api.POST("/parse", h.handleParse)

		protected := api.Group("")
		protected.Use(AuthMiddleware(d.Config.AuthToken, d.Config.GinMode == gin.ReleaseMode, d.Log))
		if d.Limiter != nil {
			protected.Use(d.Limiter.Middleware())
		}
		protected.POST("/reconcile", h.handleReconcile)
		protected.GET("/reconcile/stream", h.handleReconcileStream)
	}

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	return r
}

// handleHealth reports liveness and the active search policy.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"policy": gin.H{
			"defaultDepth":      h.policy.DefaultDepth,
			"warnDepth":         h.policy.WarnDepth,
			"maxDepth":          h.policy.MaxDepth,
			"workers":           h.policy.Workers,
			"reachabilityLimit": h.policy.ReachabilityLimit,
			"timeout":           h.policy.Timeout.String(),
		},
	})
}
