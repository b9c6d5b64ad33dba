package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fawkes-platform/smart-alerting/internal/api/handlers"
	"github.com/fawkes-platform/smart-alerting/internal/api/middleware"
	"github.com/fawkes-platform/smart-alerting/internal/config"
	"github.com/fawkes-platform/smart-alerting/internal/correlation"
	"github.com/fawkes-platform/smart-alerting/internal/ingest"
	"github.com/fawkes-platform/smart-alerting/internal/suppression"
	"github.com/fawkes-platform/smart-alerting/pkg/cache"
	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	kv         cache.KVStore
	correlator *correlation.Correlator
	ruleStore  *suppression.RuleStore
	processor  handlers.AlertEnqueuer
	stream     *handlers.WebSocketHandler
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	kv cache.KVStore,
	correlator *correlation.Correlator,
	ruleStore *suppression.RuleStore,
	proc handlers.AlertEnqueuer,
	stream *handlers.WebSocketHandler,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:     cfg,
		logger:     log,
		kv:         kv,
		correlator: correlator,
		ruleStore:  ruleStore,
		processor:  proc,
		stream:     stream,
		router:     router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	s.router.Use(middleware.RequestLogger(s.logger))

	s.router.Use(middleware.MetricsMiddleware())

	if s.config.Monitoring.Enabled {
		path := s.config.Monitoring.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.kv, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// Root banner for humans poking at the port
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "smart-alerting",
			"status":  "running",
			"docs":    "/api/v1",
		})
	})

	v1 := s.router.Group("/api/v1")

	v1.GET("/health", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)

	// Webhook ingestion
	normalizer := ingest.NewNormalizer(s.logger)
	ingestHandler := handlers.NewIngestHandler(normalizer, s.processor, s.logger)
	v1.POST("/alerts/prometheus", ingestHandler.IngestPrometheus)
	v1.POST("/alerts/grafana", ingestHandler.IngestGrafana)
	v1.POST("/alerts/datahub", ingestHandler.IngestDataHub)
	v1.POST("/alerts/generic", ingestHandler.IngestGeneric)

	// Alert groups and individual alerts
	groupsHandler := handlers.NewGroupsHandler(s.correlator, s.logger)
	v1.GET("/alert-groups", groupsHandler.ListGroups)
	v1.GET("/alert-groups/:id", groupsHandler.GetGroup)
	v1.GET("/alerts/:id", groupsHandler.GetAlert)
	v1.PUT("/alerts/:id/acknowledge", groupsHandler.AcknowledgeAlert)
	v1.PUT("/alerts/:id/resolve", groupsHandler.ResolveAlert)

	// Suppression rules
	rulesHandler := handlers.NewRulesHandler(s.ruleStore, s.logger)
	v1.GET("/rules", rulesHandler.ListRules)
	v1.POST("/rules", rulesHandler.CreateRule)
	v1.GET("/rules/:id", rulesHandler.GetRule)
	v1.PUT("/rules/:id", rulesHandler.UpdateRule)
	v1.DELETE("/rules/:id", rulesHandler.DeleteRule)

	// Effectiveness counters
	statsHandler := handlers.NewStatsHandler(s.kv, s.ruleStore, s.logger)
	v1.GET("/stats", statsHandler.GetStats)
	v1.GET("/stats/reduction", statsHandler.GetReduction)

	// Live routed-group stream
	if s.stream != nil {
		v1.GET("/stream/groups", s.stream.HandleGroupsStream)
	}
}

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("HTTP server starting", "port", s.config.Port, "environment", s.config.Environment)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
