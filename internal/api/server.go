package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/proxy-batch-checker/internal/config"
	"github.com/proxy-batch-checker/internal/metrics"
	"github.com/proxy-batch-checker/internal/pipeline"
	"github.com/proxy-batch-checker/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// Server exposes conversion, batch checks and the published working list over HTTP.
type Server struct {
	config     *config.Config
	snapshot   *snapshot.Manager
	metrics    *metrics.Collector
	runner     *pipeline.Runner
	router     *gin.Engine
	httpServer *http.Server
	limiters   *ipLimiters
}

func NewServer(cfg *config.Config, snap *snapshot.Manager, metricsCollector *metrics.Collector, runner *pipeline.Runner) *Server {
	mode := gin.ReleaseMode
	if cfg.Logging.Level == "debug" {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)

	s := &Server{
		config:   cfg,
		snapshot: snap,
		metrics:  metricsCollector,
		runner:   runner,
		router:   gin.New(),
		limiters: newIPLimiters(cfg.API.RateLimitPerMinute),
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), s.requestMetrics())

	s.router.GET("/health", s.handleHealth)
	if s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	guarded := s.router.Group("/")
	if s.config.API.EnableAPIKeyAuth {
		guarded.Use(s.requireAPIKey())
	}
	if s.config.API.EnableIPRateLimit {
		guarded.Use(s.limitPerIP())
	}

	guarded.POST("/convert", s.handleConvert)
	guarded.POST("/check", s.handleCheck)
	guarded.GET("/working", s.handleWorking)
	guarded.GET("/stat", s.handleStat)
	guarded.POST("/reload", s.handleReload)
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.config.API.Addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: /check holds the response for a whole batch
	}

	log.Infof("API listening on %s", s.config.API.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
