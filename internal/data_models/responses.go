package dto

import (
	"encoding/json"
	"time"

	model "insightforge.com/insightforge/internal/models"
)

type UploadResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	AppEnv string `json:"app_env"`
}

type TaskResponse struct {
	TaskID       string          `json:"task_id"`
	TaskType     string          `json:"task_type"`
	ModelVersion *string         `json:"model_version"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"error_message"`
	Attempts     int             `json:"attempts"`
	QueuedAt     *time.Time      `json:"queued_at"`
	StartedAt    *time.Time      `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Result       json.RawMessage `json:"result,omitempty"`
}

func NewTaskResponse(task *model.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:       task.TaskID,
		TaskType:     string(task.TaskType),
		ModelVersion: task.ModelVersion,
		Status:       string(task.Status),
		ErrorMessage: task.ErrorMessage,
		Attempts:     task.Attempts,
		QueuedAt:     task.QueuedAt,
		StartedAt:    task.StartedAt,
		CompletedAt:  task.CompletedAt,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
	if task.Result != nil {
		resp.Result = json.RawMessage(task.Result.ResultData)
	}
	return resp
}
