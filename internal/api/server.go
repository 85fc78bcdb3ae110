// ABOUTME: HTTP API over the risk core using gin
// ABOUTME: Route table, request metrics middleware and graceful shutdown
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the core over HTTP
type Server struct {
	svc    *core.Service
	router *gin.Engine
	logger *log.Logger
}

// NewServer builds the router for svc
func NewServer(svc *core.Service) *Server {
	s := &Server{
		svc:    svc,
		router: gin.New(),
		logger: log.WithPrefix("http"),
	}
	s.router.Use(gin.Recovery(), s.observe())
	s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/summary/generate", s.generateSummary)

	v1 := r.Group("/v1")
	v1.GET("/documents", s.listDocuments)
	v1.POST("/documents", s.submitDocument)
	v1.DELETE("/documents/:id", s.deleteDocument)
	v1.POST("/documents/:id/summary", s.summarizeDocument)

	v1.POST("/sessions", s.startSession)
	v1.DELETE("/sessions/:id", s.closeSession)
	v1.POST("/sessions/:id/ask", s.ask)
	v1.POST("/sessions/:id/pins", s.pin)
	v1.GET("/sessions/:id/memory", s.sessionMemory)

	v1.GET("/findings", s.listFindings)
	v1.GET("/findings/:id", s.getFinding)
	v1.POST("/findings/:id/feedback", s.submitFeedback)
	v1.GET("/findings/:id/feedback", s.findingFeedback)

	v1.GET("/memory", s.longTermMemory)
	v1.POST("/memory", s.remember)
	v1.POST("/memory/:id/promote", s.promote)
	v1.DELETE("/memory/:id", s.expire)

	v1.GET("/audit/feedback", s.auditFeedback)
	v1.GET("/audit/export", s.auditExport)
}

// observe records request counts by route template and logs each request at debug
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		s.logger.Debug("request", "method", c.Request.Method, "route", route, "status", status, "took", time.Since(start))
	}
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
