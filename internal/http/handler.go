package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"insightforge.com/insightforge/internal/constants"
	dto "insightforge.com/insightforge/internal/data_models"
	apperrors "insightforge.com/insightforge/internal/errors"
	middleware "insightforge.com/insightforge/internal/http/middlewares"
	"insightforge.com/insightforge/internal/http/validators"
	"insightforge.com/insightforge/internal/services"
)

type Handler struct {
	taskService *services.TaskService
	appEnv      string
}

func NewHandler(taskService *services.TaskService, appEnv string) *Handler {
	return &Handler{
		taskService: taskService,
		appEnv:      appEnv,
	}
}

func (h *Handler) Upload(c echo.Context) error {
	var req dto.UploadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrInvalidJSON
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	data, err := validators.NormalizeJSONPayload(req.Data)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "the data field must be valid JSON")
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), services.CreateTaskInput{
		TaskType:     constants.TaskType(req.TaskType),
		Data:         data,
		ModelVersion: req.ModelVersion,
	})
	if err != nil {
		if task != nil && errors.Is(err, apperrors.ErrDispatchFailed) {
			return c.JSON(http.StatusServiceUnavailable, dto.UploadResponse{
				Message: apperrors.ErrDispatchFailed.Message,
				TaskID:  task.TaskID,
			})
		}
		return err
	}

	return c.JSON(http.StatusAccepted, dto.UploadResponse{
		Message: "Data received and queued for analysis",
		TaskID:  task.TaskID,
	})
}

// AnalysisResult ingests the AI service callback. The signature middleware has
// already authenticated the raw body.
func (h *Handler) AnalysisResult(c echo.Context) error {
	var req dto.ResultCallbackRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrInvalidJSON
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := h.taskService.HandleCallback(c.Request().Context(), services.CallbackInput{
		TaskID:       req.TaskID,
		Status:       constants.TaskStatus(req.Status),
		Result:       req.Result,
		ErrorMessage: req.ErrorMessage,
		RawBody:      middleware.RawBody(c),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "Result processed successfully"})
}

func (h *Handler) GetTask(c echo.Context) error {
	taskID := c.Param("task_id")
	if taskID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task id is required")
	}

	task, err := h.taskService.GetTask(c.Request().Context(), taskID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.NewTaskResponse(task))
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.HealthResponse{
		Status: "ok",
		AppEnv: h.appEnv,
	})
}
