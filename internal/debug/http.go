// Package debug provides a loopback-only observability surface for the
// agent daemon: a health/stats HTTP endpoint and a websocket tail of the
// audit log. Neither is part of the IPC protocol — both exist purely for a
// developer poking at a running daemon from curl or a browser, and the
// daemon refuses to start them on anything but a loopback host (see
// ValidateLoopback).
package debug

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sodove/aios-agent/internal/kernel"
)

// KernelStats is the narrow surface the HTTP server needs from the kernel.
type KernelStats interface {
	Snapshot() kernel.Stats
}

// Server is the loopback HTTP server exposing /healthz and /stats.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds a Server bound to addr (expected to be a loopback
// address; NewServer does not check it, the daemon's startup code runs
// ValidateLoopback on the host before calling this).
func NewServer(addr string, k KernelStats, tail *AuditTail, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, k.Snapshot())
	})

	if tail != nil {
		router.GET("/audit/tail", tail.ServeWS)
	}

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		logger:     logger,
	}
}

// Start runs the server in a background goroutine. It never blocks the
// caller; ListenAndServe errors other than a clean Shutdown are logged.
func (s *Server) Start() {
	s.logger.Info("starting debug http server", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("debug http server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("debug http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// ValidateLoopback rejects any host other than the literal names
// "127.0.0.1", "localhost" and "::1" (no DNS resolution is done), enforced
// because this surface carries no auth of its own.
func ValidateLoopback(host string) error {
	if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		return fmt.Errorf("debug surface must bind to loopback, got host %q", host)
	}
	return nil
}
