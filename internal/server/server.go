// Package server provides the HTTP API of the owning ingatd service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ingatd/internal/backend"
	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Server exposes the local backend over HTTP. It exists only inside the
// owning service process; every other process reaches it through the remote
// backend.
type Server struct {
	echo    *echo.Echo
	local   *backend.Local
	logger  *zap.Logger
	config  *Config
	metrics *Metrics

	startedAt time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	DataDir string
}

// NewServer creates the HTTP server over an already-constructed local backend.
func NewServer(local *backend.Local, logger *zap.Logger, cfg *Config) (*Server, error) {
	if local == nil {
		return nil, fmt.Errorf("local backend cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 3200}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := NewMetrics(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		local:     local,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
		startedAt: time.Now().UTC(),
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/stream", s.handleStream)

	api := s.echo.Group("/api")
	api.POST("/contexts", s.handleIngest)
	api.GET("/contexts", s.handleRecent)
	api.POST("/search", s.handleSearch)
	api.GET("/projects", s.handleProjects)
	api.GET("/stats", s.handleStats)
	api.GET("/backends", s.handleBackends)
	api.PUT("/backends", s.handleSetBackend)
}

// ErrorResponse is the error body shape for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatsResponse is the response body for GET /api/stats.
type StatsResponse struct {
	Version       string `json:"version"`
	TotalContexts int    `json:"total_contexts"`
	DataDir       string `json:"data_dir"`
	StorePath     string `json:"store_path"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c echo.Context) error {
	status, err := s.local.Health(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleIngest(c echo.Context) error {
	var req backend.IngestRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
	}

	summary, err := s.local.Ingest(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	s.metrics.ObserveIngest(summary.Project)
	return c.JSON(http.StatusCreated, summary)
}

func (s *Server) handleRecent(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return s.writeError(c, fmt.Errorf("%w: limit must be an integer", domain.ErrValidation))
		}
		limit = parsed
	}

	list, err := s.local.Recent(c.Request().Context(), limit, c.QueryParam("project"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req backend.SearchRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
	}

	resp, err := s.local.Search(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}

	s.metrics.ObserveSearch(len(resp.Results))
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProjects(c echo.Context) error {
	projects, err := s.local.Projects(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	if projects == nil {
		projects = []string{}
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleStats(c echo.Context) error {
	count, err := s.local.Count()
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Version:       Version,
		TotalContexts: count,
		DataDir:       s.config.DataDir,
		StorePath:     s.local.StorePath(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleBackends(c echo.Context) error {
	list, err := s.local.Backends(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleSetBackend(c echo.Context) error {
	var req backend.SetBackendRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
	}

	list, err := s.local.SetBackend(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// writeError serializes an error as {error, code} with the matching HTTP
// status. The remote backend relies on the code to rebuild the sentinel.
func (s *Server) writeError(c echo.Context, err error) error {
	code := backend.CodeFor(err)
	status := statusFor(code)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("code", code), zap.Error(err))
	}

	return c.JSON(status, ErrorResponse{Error: errorMessage(err), Code: code})
}

func statusFor(code string) int {
	switch code {
	case backend.CodeValidation, backend.CodeUnknownBackend:
		return http.StatusBadRequest
	case backend.CodeNotFound:
		return http.StatusNotFound
	case backend.CodeLockHeld:
		return http.StatusConflict
	case backend.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Start starts the HTTP server and blocks until shutdown or failure.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
