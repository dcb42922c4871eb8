// Package server assembles the HTTP surface: intake, search relay,
// analytics reads, health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"recruit-intake/internal/analytics"
	"recruit-intake/internal/common/config"
	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/intake"
	"recruit-intake/internal/relay"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readyCheckTimeout = 2 * time.Second

// Checker is a dependency probed by the readiness endpoint.
type Checker interface {
	Ping(ctx context.Context) error
}

// Dependencies holds the handlers and probes to mount. Nil handlers are
// skipped.
type Dependencies struct {
	Intake    *intake.Handler
	Relay     *relay.Handler
	Analytics *analytics.Handler
	Checks    map[string]Checker
}

type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	checks map[string]Checker
	logger logger.Logger
}

func New(cfg config.ServerConfig, deps Dependencies, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperrors.NewErrorHandler(log).HandleHTTPError

	s := &Server{
		echo:   e,
		cfg:    cfg,
		checks: deps.Checks,
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}

	e.Use(middleware.Recover())
	e.Use(RequestIDMiddleware(log))
	e.Use(MetricsMiddleware)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"authorization", "x-client-info", "apikey", "content-type", "x-api-key"},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", s.health)
	e.GET("/ready", s.ready)

	if deps.Intake != nil {
		deps.Intake.Register(e)
	}

	api := e.Group("/api/v1")
	if deps.Relay != nil {
		deps.Relay.Register(api)
	}
	if deps.Analytics != nil {
		deps.Analytics.Register(api)
	}

	return s
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.cfg.Address()})
	if err := s.echo.Start(s.cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyCheckTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			s.logger.Warn("Readiness check failed", map[string]interface{}{"check": name, "error": err.Error()})
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	return c.JSON(status, map[string]interface{}{"status": state, "checks": results})
}
