package model

import (
	"time"

	"gorm.io/datatypes"

	"insightforge.com/insightforge/internal/constants"
)

type Task struct {
	ID           uint                 `gorm:"primaryKey" json:"-"`
	TaskID       string               `gorm:"uniqueIndex;size:36;not null" json:"task_id"`
	TaskType     constants.TaskType   `gorm:"type:varchar(64);not null" json:"task_type"`
	DataPayload  datatypes.JSON       `gorm:"not null" json:"data"`
	ModelVersion *string              `gorm:"size:64" json:"model_version,omitempty"`
	Status       constants.TaskStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`
	ErrorMessage *string              `gorm:"type:text" json:"error_message,omitempty"`
	Attempts     int                  `gorm:"not null;default:0" json:"attempts"`
	QueuedAt     *time.Time           `gorm:"index" json:"queued_at,omitempty"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`

	Result *Result   `gorm:"foreignKey:AnalysisTaskID;constraint:OnDelete:CASCADE" json:"result,omitempty"`
	Logs   []TaskLog `gorm:"foreignKey:AnalysisTaskID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Task) TableName() string {
	return "analysis_tasks"
}
