package model

import (
	"time"

	"gorm.io/datatypes"

	"insightforge.com/insightforge/internal/constants"
)

// TaskLog is an append-only audit entry. Rows are never updated or deleted.
type TaskLog struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	AnalysisTaskID uint                `gorm:"index;not null" json:"-"`
	EventType      constants.EventType `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Description    string              `gorm:"type:text" json:"description"`
	Details        datatypes.JSON      `json:"details,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (TaskLog) TableName() string {
	return "task_logs"
}
