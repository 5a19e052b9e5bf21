// Package api provides the HTTP surface of the pipeline: submit a run,
// read a run's status, health.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"postforge/internal/logging"
	"postforge/internal/run"
	"postforge/internal/runstate"
)

// Submitter hands an accepted run to the active pipeline driver.
type Submitter interface {
	Submit(ctx context.Context, msg run.QueueMessage) error
}

// Server hosts the orchestration API.
type Server struct {
	echo      *echo.Echo
	recorder  *runstate.Recorder
	submitter Submitter
	bind      string
	logger    *slog.Logger
}

// NewServer wires routes and middleware.
func NewServer(recorder *runstate.Recorder, submitter Submitter, bind string, logger *slog.Logger) (*Server, error) {
	if recorder == nil {
		return nil, errors.New("api server: recorder required")
	}
	if submitter == nil {
		return nil, errors.New("api server: submitter required")
	}
	logger = logging.NewComponentLogger(logger, "api")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				logging.String("method", c.Request().Method),
				logging.String("uri", c.Request().RequestURI),
				logging.Int("status", c.Response().Status),
				logging.Duration("duration", time.Since(start)),
				logging.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		recorder:  recorder,
		submitter: submitter,
		bind:      bind,
		logger:    logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/orchestrate", s.handleOrchestrate)
	api.GET("/status", s.handleStatus)
	api.GET("/runs", s.handleListRuns)
}

// OrchestrateRequest is the request body for POST /api/orchestrate.
type OrchestrateRequest struct {
	BrandID    string `json:"brandId"`
	PostPlanID string `json:"postPlanId"`
	RunTraceID string `json:"runTraceId,omitempty"`
}

// OrchestrateResponse acknowledges an accepted run.
type OrchestrateResponse struct {
	Accepted   bool   `json:"accepted"`
	RunTraceID string `json:"runTraceId"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleOrchestrate accepts a run: seed the orchestrate phase in the state
// store, hand the first message to the driver, answer 202. The work itself
// happens after the response.
func (s *Server) handleOrchestrate(c echo.Context) error {
	var req OrchestrateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.BrandID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "brandId is required")
	}
	if strings.TrimSpace(req.PostPlanID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "postPlanId is required")
	}

	runTraceID := strings.TrimSpace(req.RunTraceID)
	if runTraceID == "" {
		runTraceID = uuid.NewString()
	}
	ctx := c.Request().Context()

	s.recorder.Record(ctx, runstate.Update{
		RunTraceID: runTraceID,
		Phase:      run.PhaseOrchestrate,
		Status:     run.StatusInProgress,
		BrandID:    req.BrandID,
		PostPlanID: req.PostPlanID,
	}, "start", "run accepted")

	msg := run.QueueMessage{
		RunTraceID: runTraceID,
		BrandID:    req.BrandID,
		PostPlanID: req.PostPlanID,
		Step:       run.StepGenerateContent,
		Agent:      "copywriter",
	}
	if err := s.submitter.Submit(ctx, msg); err != nil {
		s.logger.Error("submit failed",
			logging.String(logging.FieldRunID, runTraceID),
			logging.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not submit run")
	}

	return c.JSON(http.StatusAccepted, OrchestrateResponse{Accepted: true, RunTraceID: runTraceID})
}

// handleStatus reads a run's state. A run the store has never seen answers
// as pending orchestrate rather than 404: accepted work may simply not have
// written its first record yet.
func (s *Server) handleStatus(c echo.Context) error {
	runTraceID := strings.TrimSpace(c.QueryParam("runTraceId"))
	if runTraceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "runTraceId query parameter is required")
	}

	state, err := s.recorder.GetStatus(c.Request().Context(), runTraceID)
	if err != nil {
		s.logger.Error("status read failed",
			logging.String(logging.FieldRunID, runTraceID),
			logging.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read run state")
	}
	if state == nil {
		state = &run.RunState{
			RunTraceID:   runTraceID,
			CurrentPhase: run.PhaseOrchestrate,
			Status:       run.StatusPending,
		}
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleListRuns(c echo.Context) error {
	states, err := s.recorder.List(c.Request().Context())
	if err != nil {
		s.logger.Error("list runs failed", logging.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list runs")
	}
	if states == nil {
		states = []*run.RunState{}
	}
	return c.JSON(http.StatusOK, states)
}

// Handler exposes the underlying mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", logging.String("addr", s.bind))
	err := s.echo.Start(s.bind)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
