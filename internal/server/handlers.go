package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban/internal/api"
	"kanban/internal/board"
)

const metricsKey = "kanban.metrics"

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *TaskService) {
	g := e.Group(api.BasePath)
	g.GET("/tasks", listTasks(svc))
	g.POST("/tasks", createTask(svc))
	g.PUT("/tasks/:id", updateTask(svc))
	g.DELETE("/tasks/:id", deleteTask(svc))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, api.OK[any]("ok", nil))
	}
}

func listTasks(svc *TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := svc.List(c.Request().Context())
		if err != nil {
			return stageError(c, "storage", err)
		}
		if tasks == nil {
			tasks = []board.Task{}
		}
		metricsFrom(c).SetTasks(len(tasks))
		return c.JSON(http.StatusOK, api.OK("success", tasks))
	}
}

func createTask(svc *TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req api.CreateTaskRequest
		if err := c.Bind(&req); err != nil {
			return stageError(c, "decode", err)
		}
		key := strings.TrimSpace(c.Request().Header.Get(api.IdempotencyHeader))
		t, replayed, err := svc.Create(c.Request().Context(), req, key)
		if err != nil {
			return stageError(c, "create", err)
		}
		metricsFrom(c).SetTasks(1)
		if replayed {
			return c.JSON(http.StatusOK, api.OK("created", t))
		}
		return c.JSON(http.StatusCreated, api.OK("created", t))
	}
}

func updateTask(svc *TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch api.UpdateTaskRequest
		if err := c.Bind(&patch); err != nil {
			return stageError(c, "decode", err)
		}
		t, err := svc.Update(c.Request().Context(), c.Param("id"), board.Patch(patch))
		if err != nil {
			return stageError(c, "update", err)
		}
		metricsFrom(c).SetTasks(1)
		return c.JSON(http.StatusOK, api.OK("updated", t))
	}
}

func deleteTask(svc *TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
			return stageError(c, "delete", err)
		}
		return c.JSON(http.StatusOK, api.OK[any]("deleted", nil))
	}
}

// stageError tags the request metrics and maps err to an HTTP error.
func stageError(c echo.Context, stage string, err error) error {
	metricsFrom(c).SetErrorStage(stage)
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, board.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found").SetInternal(err)
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.Is(err, ErrInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

// RequestMetrics traces and logs every request.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			m, ctx := newRequestMetrics(req.Context(), logger, req.Method, route)
			c.SetRequest(req.WithContext(ctx))
			c.Set(metricsKey, m)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			m.Log(c.Response().Status, err)
			return nil
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	if m, ok := c.Get(metricsKey).(*requestMetrics); ok {
		return m
	}
	return &requestMetrics{tasks: -1}
}
