// Package server hosts the HTTP transport for the resolution engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/intentd/intentd/engine"
	"github.com/intentd/intentd/engine/metrics"
	"github.com/intentd/intentd/internal/profile"
	"github.com/intentd/intentd/server/router/apiv1"
)

// maxConcurrentResolves bounds in-flight resolutions per instance.
const maxConcurrentResolves = 16

// Server wires the echo instance, the engine and the metrics endpoint.
type Server struct {
	profile  *profile.Profile
	echo     *echo.Echo
	resolver *engine.Resolver
}

// New creates a configured but not yet started server.
func New(profile *profile.Profile, resolver *engine.Resolver, exporter *metrics.Exporter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":     "ok",
			"intents":    resolver.Catalog().Count(),
			"dimensions": resolver.Catalog().Dimensions(),
		})
	})
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	api := apiv1.NewAPIV1Service(resolver, maxConcurrentResolves)
	api.RegisterRoutes(e.Group("/api/v1"))

	return &Server{profile: profile, echo: e, resolver: resolver}
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until the listener fails. http.ErrServerClosed is the
// normal shutdown signal and is not reported as a failure.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("intentd listening", "addr", addr, "mode", s.profile.Mode)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and waits for
// background engine work.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down http server")
	}
	s.resolver.Shutdown()
	return nil
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	})
}
