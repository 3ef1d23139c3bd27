package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"EnergyPull/internal/domain/models"
	"EnergyPull/internal/service/ratelimit"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/cache"
	xhttp "EnergyPull/pkg/http"
	xlogger "EnergyPull/pkg/logger"
)

// RunService starts pipeline runs and reports the latest one.
type RunService interface {
	Start(ctx context.Context, opts usecase.RunOptions) (string, <-chan *models.RunReport, error)
	Latest(ctx context.Context) (*models.RunReport, error)
}

// HealthCheck checks one dependency for the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RunsEchoHandler serves the operational API of the pipeline.
type RunsEchoHandler struct {
	logger  *xlogger.Logger
	runs    RunService
	checks  []HealthCheck
	limiter *ratelimit.Limiter
}

func NewRunsEchoHandler(logger *xlogger.Logger, runs RunService, checks ...HealthCheck) *RunsEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &RunsEchoHandler{logger: logger, runs: runs, checks: checks}
}

// WithTriggerLimit throttles manual triggers per client address.
func (h *RunsEchoHandler) WithTriggerLimit(l *ratelimit.Limiter) *RunsEchoHandler {
	h.limiter = l
	return h
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/runs/latest", h.Latest)
	g.POST("/runs", h.Trigger, h.limitTriggers)
}

func (h *RunsEchoHandler) limitTriggers(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil {
			return next(c)
		}
		key := c.RealIP()
		if !h.limiter.Allow(key) {
			wait := h.limiter.RetryAfter(key)
			c.Response().Header().Set("Retry-After", strconv.Itoa(xhttp.RetryAfterSeconds(wait)))
			h.logger.Warn("run trigger throttled", xlogger.String("client", key), xlogger.Duration("retry_after_ms", wait))
			return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("too many run triggers", wait))
		}
		return next(c)
	}
}

func (h *RunsEchoHandler) Health(c echo.Context) error {
	status := xhttp.HealthStatus{Status: "ok", Components: map[string]string{}}
	for _, hc := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		err := hc.Check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", xlogger.String("component", hc.Name), xlogger.Error(err))
			status.Status = "degraded"
			status.Components[hc.Name] = err.Error()
			continue
		}
		status.Components[hc.Name] = "ok"
	}
	if status.Status != "ok" {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *RunsEchoHandler) Latest(c echo.Context) error {
	report, err := h.runs.Latest(c.Request().Context())
	if errors.Is(err, cache.ErrCacheMiss) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no run recorded yet"))
	}
	if err != nil {
		h.logger.Error("latest run lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, report)
}

func (h *RunsEchoHandler) Trigger(c echo.Context) error {
	req := &models.TriggerRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	id, _, err := h.runs.Start(c.Request().Context(), usecase.RunOptions{
		Trigger:      req.Trigger,
		DryRun:       req.DryRun,
		SkipArchive:  req.SkipArchive,
		FeaturesOnly: req.FeaturesOnly,
	})
	var busy *models.RunInProgressError
	if errors.As(err, &busy) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a pipeline run is already in progress").
			WithParam("lock", busy.Key).WithError(err))
	}
	if err != nil {
		h.logger.Error("run trigger failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, models.RunAccepted{RunID: id, Status: models.RunRunning})
}
