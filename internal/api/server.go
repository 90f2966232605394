// Package api exposes the clarad CLI/IPC surface (§6) as a local-only
// HTTP control API, mirroring the MCP tool surface in internal/mcp over
// REST routes for host shells that prefer HTTP over stdio.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/supervisor"
)

// Server binds the control API to 127.0.0.1 only; it is never exposed
// to the network.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	log    *logrus.Entry
}

// NewServer builds the router for facade's CLI/IPC surface.
func NewServer(facade *supervisor.Facade, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{facade: facade}
	registerRoutes(engine, h)

	return &Server{engine: engine, log: log}
}

// Run starts listening on 127.0.0.1:port and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	s.srv = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func registerRoutes(engine *gin.Engine, h *handlers) {
	engine.POST("/start", h.start)
	engine.POST("/stop", h.stop)
	engine.POST("/restart", h.restart)
	engine.GET("/status", h.getStatus)
	engine.GET("/status/health", h.getStatusWithHealthCheck)
	engine.GET("/gpu-diagnostics", h.getGPUDiagnostics)
	engine.GET("/backends", h.getAvailableBackends)
	engine.POST("/backends/override", h.setBackendOverride)
	engine.GET("/models/configurations", h.getModelConfigurations)
	engine.PUT("/models/configurations/:name", h.saveModelConfiguration)
	engine.PUT("/models/configurations", h.saveAllModelConfigurations)
	engine.PUT("/mmproj-mappings", h.saveMmprojMappings)
	engine.GET("/mmproj-mappings", h.loadMmprojMappings)
	engine.POST("/config/force-reconfigure", h.forceReconfigure)
	engine.POST("/config/save-and-restart", h.saveConfigAndRestart)
	engine.POST("/optimizer/:preset", h.runLlamaOptimizer)
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("api: request handled")
	}
}
