// Package http provides the companiond HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/orchestrator"
	"github.com/fyrsmithlabs/companiond/internal/pairlock"
	"github.com/fyrsmithlabs/companiond/internal/store"
)

const maxBodyBytes = "256K"

// Engine is the part of the orchestrator the API serves.
type Engine interface {
	ProcessMessage(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	ResetCompanionBehaviors(ctx context.Context, companionID string) error
	Bond(ctx context.Context, companionID, userID string) (bond.Bond, error)
	Progression(ctx context.Context, companionID string) (behavior.ProgressionState, error)
}

// Server provides HTTP endpoints for companiond.
type Server struct {
	echo    *echo.Echo
	engine  Engine
	locks   *pairlock.Locker
	logger  *logging.Logger
	metrics *Metrics
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// LockTimeout bounds the wait for a pair's sequencing token.
	LockTimeout time.Duration

	Version string

	// Meter receives request metrics; nil uses the global provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(engine Engine, locks *pairlock.Locker, logger *logging.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if locks == nil {
		locks = pairlock.New()
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9191}
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}

	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", statusOf(c, err)),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		locks:   locks,
		logger:  logger,
		metrics: NewMetrics(),
		config:  cfg,
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	companions := v1.Group("/companions/:companion")
	companions.POST("/users/:user/messages", s.handleMessage)
	companions.GET("/users/:user/bond", s.handleBond)
	companions.GET("/progression", s.handleProgression)
	companions.DELETE("/behaviors", s.handleReset)
}

// Echo exposes the router so callers can mount extra endpoints.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Metrics returns the Prometheus series.
func (s *Server) Metrics() *Metrics { return s.metrics }

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

// handleMessage runs one message through the engine while holding the
// pair's sequencing token.
func (s *Server) handleMessage(c echo.Context) error {
	var body MessageRequest
	if err := c.Bind(&body); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid message request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	req := orchestrator.Request{
		CompanionID: c.Param("companion"),
		UserID:      c.Param("user"),
		Message:     body.Message,
		History:     body.History,
		Plan:        body.Plan,
	}
	if err := req.Validate(); err != nil {
		return s.writeError(c, err)
	}

	ctx := c.Request().Context()
	lockCtx, cancel := context.WithTimeout(ctx, s.config.LockTimeout)
	defer cancel()

	waitStart := time.Now()
	release, err := s.locks.Acquire(lockCtx, pairlock.Pair{CompanionID: req.CompanionID, UserID: req.UserID})
	s.metrics.PairLockWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.PairLockTimeouts.Inc()
			s.logger.Warn(ctx, "pair busy, sequencing token not acquired",
				zap.String("companion.id", req.CompanionID), zap.String("user.id", req.UserID))
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "conversation busy, retry"})
		}
		return s.writeError(c, ctx.Err())
	}
	defer release()

	res, err := s.engine.ProcessMessage(ctx, req)
	if err != nil {
		return s.writeError(c, err)
	}

	s.metrics.MessagesTotal.WithLabelValues(string(res.Path), fmt.Sprint(res.Degraded)).Inc()
	return c.JSON(http.StatusOK, newMessageResponse(res))
}

func (s *Server) handleBond(c echo.Context) error {
	b, err := s.engine.Bond(c.Request().Context(), c.Param("companion"), c.Param("user"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, newBondResponse(b))
}

func (s *Server) handleProgression(c echo.Context) error {
	prog, err := s.engine.Progression(c.Request().Context(), c.Param("companion"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, ProgressionResponse(prog))
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.engine.ResetCompanionBehaviors(c.Request().Context(), c.Param("companion")); err != nil {
		return s.writeError(c, err)
	}
	s.metrics.ResetsTotal.Inc()
	return c.NoContent(http.StatusNoContent)
}

// writeError maps engine errors onto status codes. Internal details are
// logged, never returned.
func (s *Server) writeError(c echo.Context, err error) error {
	var verr *orchestrator.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, orchestrator.ErrValidation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		return c.NoContent(499)
	default:
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
