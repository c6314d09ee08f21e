// Package server exposes the engine over HTTP: the search pipeline, the item
// corpus and knowledge graph administration.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	lattice "github.com/latticehq/lattice"
	"github.com/latticehq/lattice/pkg/archive"
	"github.com/latticehq/lattice/pkg/config"
	"github.com/latticehq/lattice/pkg/server/handlers"
	"github.com/latticehq/lattice/pkg/types"
)

// Server is the HTTP front for a lattice engine.
type Server struct {
	config *config.Config
	engine *lattice.Engine
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// New creates a server. Call Setup before Start.
func New(cfg *config.Config, engine *lattice.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: cfg, engine: engine, logger: logger}
}

// Setup builds the router, middleware and routes.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the underlying gin router, for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine)
	searchHandler := handlers.NewSearchHandler(s.engine)

	var exporter handlers.SnapshotExporter
	if dir := s.config.Graph.ExportDir; dir != "" {
		pe, err := archive.NewParquetExporter(dir)
		if err != nil {
			s.logger.Warn("snapshot export disabled", "dir", dir, "error", err)
		} else {
			exporter = pe
		}
	}
	graphHandler := handlers.NewGraphHandler(s.engine.Graph(), exporter)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/search", searchHandler.Search)
		v1.GET("/cache/stats", searchHandler.CacheStats)

		v1.PUT("/items", searchHandler.UpsertItem)
		v1.GET("/items/:item_id", searchHandler.GetItem)
		v1.DELETE("/items/:item_id", searchHandler.DeleteItem)

		g := v1.Group("/graph")
		{
			g.POST("/nodes", graphHandler.AddNode)
			g.GET("/nodes/:node_key", graphHandler.GetNode)
			g.GET("/nodes/:node_key/degree", graphHandler.NodeDegree)
			g.POST("/nodes/:node_key/items", graphHandler.LinkItems)

			g.POST("/edges", graphHandler.AddEdge)
			g.GET("/edges/:edge_id", graphHandler.GetEdge)
			g.POST("/edges/:edge_id/deactivate", graphHandler.DeactivateEdge)
			g.POST("/edges/:edge_id/activate", graphHandler.ActivateEdge)
			g.PUT("/edges/:edge_id/validity", graphHandler.SetEdgeValidity)

			g.POST("/traverse", graphHandler.Traverse)
			g.POST("/shortest-path", graphHandler.ShortestPath)
			g.GET("/stats", graphHandler.Statistics)

			g.POST("/snapshots", graphHandler.CreateSnapshot)
			g.GET("/snapshots", graphHandler.ListSnapshots)
			g.GET("/snapshots/:snapshot_id", graphHandler.GetSnapshot)
			g.POST("/snapshots/:snapshot_id/restore", graphHandler.RestoreSnapshot)
			g.POST("/snapshots/:snapshot_id/export", graphHandler.ExportSnapshot)
		}
	}
}

// Start begins serving. Blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds permissive CORS headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Tenant-ID, X-Project-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// contextMiddleware copies partition headers into the request context so
// telemetry can attribute records without plumbing them through handlers.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if tenantID := c.GetHeader("X-Tenant-ID"); tenantID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyTenantID, tenantID)
		}
		if projectID := c.GetHeader("X-Project-ID"); projectID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyProjectID, projectID)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
