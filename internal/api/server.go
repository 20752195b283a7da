package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/seriesync/internal/api/handlers"
	"github.com/amaumene/seriesync/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies are what the HTTP routes serve
type Dependencies struct {
	Stats        handlers.StatsSource
	Scheduler    SchedulerAPI
	Changes      handlers.ChangeSource
	Search       handlers.ShowSearcher
	Connectivity handlers.Connectivity
	BreakerState func() string
}

// SchedulerAPI is the scheduler as used by the routes
type SchedulerAPI interface {
	handlers.SchedulerStatus
	handlers.PassTrigger
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server listening on port
func NewServer(port string, deps Dependencies, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      NewHandler(deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// NewHandler builds the routed handler with its middleware
func NewHandler(deps Dependencies, logger *logrus.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(deps.Connectivity, logger))
	mux.Handle("/status", handlers.NewStatusHandler(deps.Stats, deps.Scheduler, deps.Changes, deps.BreakerState, logger))
	mux.Handle("/api/sync", handlers.NewSyncHandler(deps.Scheduler, logger))
	mux.Handle("/api/shows/search", handlers.NewSearchHandler(deps.Search, logger))
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Recover(middleware.Logging(mux, logger), logger)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
