package dto

import "encoding/json"

type UploadRequest struct {
	Data         json.RawMessage `json:"data" validate:"required,json_payload"`
	TaskType     string          `json:"task_type" validate:"required,task_type"`
	ModelVersion string          `json:"model_version" validate:"required,max=64"`
}

// ResultCallbackRequest is the body the AI service posts once an analysis
// finishes.
type ResultCallbackRequest struct {
	TaskID       string          `json:"task_id" validate:"required,max=64"`
	Status       string          `json:"status" validate:"required,oneof=completed failed"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage *string         `json:"error_message"`
	ModelVersion *string         `json:"model_version" validate:"omitempty,max=64"`
}
