package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/sweep"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/validator"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/status")

//go:generate mockgen -destination ./mock/mock.go -package mock . StatsSource,Sweeps

type StatsSource interface {
	Stats() *coordinator.Stats
}

type Sweeps interface {
	Scheduled() []types.ScheduledSweep
	ScheduleSweep(ctx context.Context, kind, proj string, when time.Time) error
	ScheduleCatchups(ctx context.Context, kind, proj string, window time.Duration) (int, error)
}

// Serves the coordinator's view of itself
type Handler struct {
	stats  StatsSource
	sweeps Sweeps
}

func NewHandler(stats StatsSource, sweeps Sweeps) *Handler {
	return &Handler{stats: stats, sweeps: sweeps}
}

func BuildEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("didit"),
		slogecho.NewWithConfig(logger, slogecho.Config{}),
	)

	return e
}

func (h *Handler) AddRoutes(e *echo.Echo) {
	e.GET("/ping/", Ping)
	e.GET("/status/", h.Status)

	sweeps := e.Group("/sweeps")
	sweeps.GET("/scheduled/", h.Scheduled)
	sweeps.POST("/scheduled/", h.Schedule)

	e.POST("/catchups/", h.Catchups)
}

func Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Status(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "Status", trace.WithAttributes(
		attribute.String("remote", c.RealIP()),
	))
	defer span.End()

	stats := h.stats.Stats()
	if stats == nil {
		span.SetStatus(codes.Error, "no stats sample yet")
		return UnavailableError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "returned stats")
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Scheduled(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "Scheduled", trace.WithAttributes(
		attribute.String("remote", c.RealIP()),
	))
	defer span.End()

	scheduled := h.sweeps.Scheduled()

	span.SetAttributes(attribute.Int("scheduled", len(scheduled)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed scheduled sweeps")
	return c.JSON(http.StatusOK, scheduled)
}

type ScheduleRequest struct {
	When time.Time `json:"when" validate:"required"`
	Kind string    `json:"kind" validate:"required"`
	Proj string    `json:"proj" validate:"required"`
}

func (h *Handler) Schedule(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Schedule")
	defer span.End()

	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse request data")
		return echo.NewHTTPError(http.StatusBadRequest, StringError("failed to parse request data"))
	}
	if err := c.Validate(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to validate request")
		return echo.NewHTTPError(http.StatusBadRequest, ValidationError(err))
	}

	span.SetAttributes(
		attribute.String("kind", req.Kind),
		attribute.String("proj", req.Proj),
		attribute.String("when", req.When.Format(time.RFC3339)),
	)

	err := h.sweeps.ScheduleSweep(ctx, req.Kind, req.Proj, req.When)
	switch {
	case errors.Is(err, sweep.ErrTooFarInFuture):
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep too far in the future")
		return echo.NewHTTPError(http.StatusBadRequest, StringError(err.Error()))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to schedule sweep")
		return InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "scheduled sweep")
	return c.JSON(http.StatusAccepted, req)
}

type CatchupRequest struct {
	Kind  string `json:"kind"  validate:"required"`
	Proj  string `json:"proj"  validate:"required"`
	Hours int    `json:"hours" validate:"gte=0,lte=336"`
}

type CatchupResponse struct {
	Repos int `json:"repos"`
}

func (h *Handler) Catchups(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Catchups")
	defer span.End()

	var req CatchupRequest
	if err := c.Bind(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse request data")
		return echo.NewHTTPError(http.StatusBadRequest, StringError("failed to parse request data"))
	}
	if err := c.Validate(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to validate request")
		return echo.NewHTTPError(http.StatusBadRequest, ValidationError(err))
	}

	span.SetAttributes(
		attribute.String("kind", req.Kind),
		attribute.String("proj", req.Proj),
		attribute.Int("hours", req.Hours),
	)

	n, err := h.sweeps.ScheduleCatchups(ctx, req.Kind, req.Proj, time.Duration(req.Hours)*time.Hour)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to schedule catch-ups")
		return InternalServerError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "scheduled catch-ups")
	return c.JSON(http.StatusAccepted, CatchupResponse{Repos: n})
}
