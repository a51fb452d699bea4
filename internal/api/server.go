package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"example.com/jodi/services/whatsapp/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server exposes the watch scheduler's metrics and health over HTTP.
type Server struct {
	httpServer *http.Server
	metrics    *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(address string, m *metrics.Metrics) *Server {
	server := &Server{metrics: m}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", server.handleGetMetrics)
	router.GET("/health", server.handleGetHealthCheck)

	server.httpServer = &http.Server{
		Addr:    address,
		Handler: router,
	}

	return server
}

func (s *Server) handleGetMetrics(c *gin.Context) {
	s.metrics.SetGauge("goroutines", int64(runtime.NumGoroutine()))
	c.JSON(http.StatusOK, s.metrics.GetAllMetrics())
}

func (s *Server) handleGetHealthCheck(c *gin.Context) {
	healthChecks := s.metrics.GetHealthChecks()

	healthy := true
	for _, status := range healthChecks {
		if !status {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":  healthy,
		"details": healthChecks,
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.httpServer.Addr).Msg("Starting metrics server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "metrics server shutdown error")
	}

	return nil
}
