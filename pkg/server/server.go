package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/AudioList/clover/config"
	"github.com/AudioList/clover/pkg/middleware"
	healthroute "github.com/AudioList/clover/pkg/routes/health"
	matchdecisionroute "github.com/AudioList/clover/pkg/routes/matchdecision"
	productroute "github.com/AudioList/clover/pkg/routes/product"
	reconcileroute "github.com/AudioList/clover/pkg/routes/reconcile"
)

// Server is the HTTP surface of the service
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	logger  ectologger.Logger
	checker *healthroute.Checker
}

// New assembles the echo instance: middleware chain, error handler, health
// endpoints, and the versioned API routes.
func New(cfg *config.Config, logger ectologger.Logger, checker *healthroute.Checker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	productroute.Register(api.Group("/products"))
	matchdecisionroute.Register(api.Group("/match-decisions"))
	reconcileroute.Register(api.Group("/reconcile"))

	return &Server{
		echo:    e,
		cfg:     cfg,
		logger:  logger,
		checker: checker,
	}
}

// Echo exposes the underlying echo instance for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start marks the service ready and blocks serving HTTP until shutdown
func (s *Server) Start() error {
	s.checker.SetReady(true)
	s.logger.WithField("port", s.cfg.Port).Infof("Starting HTTP server on port %d", s.cfg.Port)
	return s.echo.Start(fmt.Sprintf(":%d", s.cfg.Port))
}

// Stop drains in-flight requests and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.checker.SetReady(false)
	return s.echo.Shutdown(ctx)
}
