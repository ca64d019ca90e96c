// Package api exposes the dashboard's usage analytics over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/openclaw/missionctl/internal/config"
	"github.com/openclaw/missionctl/internal/gateway"
	"github.com/openclaw/missionctl/internal/history"
	"github.com/openclaw/missionctl/internal/logging"
	"github.com/openclaw/missionctl/internal/pricing"
)

// Server wires the usage endpoint and its supporting routes.
type Server struct {
	cfg       *config.Config
	gateway   *gateway.Client
	store     *history.Store
	cleaner   *history.RetentionCleaner
	catalog   *pricing.CatalogFetcher
	workspace config.WorkspaceProvider

	engine     *gin.Engine
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer assembles the HTTP server. catalog may be nil when no
// dynamic pricing catalog is configured; cleaner may be nil when
// retention is disabled.
func NewServer(
	cfg *config.Config,
	gatewayClient *gateway.Client,
	store *history.Store,
	cleaner *history.RetentionCleaner,
	catalog *pricing.CatalogFetcher,
	workspace config.WorkspaceProvider,
) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		gateway:   gatewayClient,
		store:     store,
		cleaner:   cleaner,
		catalog:   catalog,
		workspace: workspace,
		startedAt: time.Now(),
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithField("panic", recovered).Error("request handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("%v", recovered),
		})
	}))

	engine.GET("/api/usage", s.handleUsage)
	engine.GET("/api/usage/history", s.handleUsageHistory)
	engine.GET("/api/models/status", s.handleModelStatus)
	engine.GET("/healthz", s.handleHealthz)
	engine.POST("/api/usage/history/retention", s.handleUpdateRetention)

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Infof("mission control listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
