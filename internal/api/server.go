// Package api exposes the admin HTTP surface: manual sync triggering,
// run status, health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/bdns-notifier/internal/models"
	"github.com/david/bdns-notifier/internal/store"
	"github.com/david/bdns-notifier/internal/syncer"
)

// SyncRunner is the scheduler surface the server needs.
type SyncRunner interface {
	RunNow(ctx context.Context) (*models.SyncRun, error)
	Running() bool
}

type Server struct {
	Echo      *echo.Echo
	scheduler SyncRunner
	runs      store.RunStore
}

func NewServer(scheduler SyncRunner, runs store.RunStore) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{Echo: e, scheduler: scheduler, runs: runs}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.Echo.Group("/api/v1")
	v1.POST("/sync/run", s.handleSyncRun)
	v1.GET("/sync/status", s.handleSyncStatus)
	v1.GET("/sync/runs", s.handleSyncRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSyncRun triggers a run and blocks until it finishes. A second
// request while a run is in flight gets 409.
func (s *Server) handleSyncRun(c echo.Context) error {
	run, err := s.scheduler.RunNow(c.Request().Context())
	if errors.Is(err, syncer.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		// The failed run record still carries the counters.
		if run != nil {
			return c.JSON(http.StatusInternalServerError, run)
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleSyncStatus(c echo.Context) error {
	resp := map[string]any{"running": s.scheduler.Running()}
	last, err := s.runs.LastRun(c.Request().Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		resp["last_run"] = nil
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		resp["last_run"] = last
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSyncRuns(c echo.Context) error {
	runs, err := s.runs.ListRecentRuns(c.Request().Context(), 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}
