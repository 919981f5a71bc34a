package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/DataMention-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	MentionHandler    *handlers.MentionHandler
	PredictionHandler *handlers.PredictionHandler
	SearchHandler     *handlers.SearchHandler
	HealthHandler     *handlers.HealthHandler

	RateLimiter middleware.RateLimiter
	Logging     middleware.LoggingConfig

	Logger  logging.Logger
	Metrics *prometheus.PipelineMetrics

	// MetricsHandler serves MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// Mode is the gin mode (debug, release, test).
	Mode string
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = prometheus.NewNopPipelineMetrics()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	registerMentionRoutes(api, cfg.MentionHandler)
	registerPredictionRoutes(api, cfg.PredictionHandler)
	registerSearchRoutes(api, cfg.SearchHandler)

	return r
}

func registerMentionRoutes(r *gin.RouterGroup, h *handlers.MentionHandler) {
	if h == nil {
		return
	}
	r.POST("/extract", h.Extract)
	r.PUT("/lexicon", h.ReplaceLexicon)
}

func registerPredictionRoutes(r *gin.RouterGroup, h *handlers.PredictionHandler) {
	if h == nil {
		return
	}
	r.POST("/predict", h.Predict)
	r.POST("/predict/snippet", h.PredictSnippet)
	r.POST("/evaluate", h.Evaluate)
	r.POST("/evaluations", h.RunEvaluation)
	r.GET("/model", h.Model)
	r.POST("/model/reload", h.ReloadModel)
}

func registerSearchRoutes(r *gin.RouterGroup, h *handlers.SearchHandler) {
	if h == nil {
		return
	}
	r.GET("/search", h.Search)
	r.GET("/publications/:id/datasets", h.PublicationDatasets)
	r.GET("/datasets/:id/publications", h.DatasetPublications)
	r.GET("/datasets/:id/cocited", h.CoCited)
}
