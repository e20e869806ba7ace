package model

import (
	"time"

	"gorm.io/datatypes"
)

// Result holds the AI service output of a completed task. One per task.
type Result struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	AnalysisTaskID uint           `gorm:"uniqueIndex;not null" json:"-"`
	ResultData     datatypes.JSON `gorm:"not null" json:"result_data"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Result) TableName() string {
	return "analysis_results"
}
