package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// Pipeline run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

// PipelineRun is the execution history of one end-to-end pipeline run.
type PipelineRun struct {
	ID           uint64         `gorm:"primaryKey" json:"id"`
	Status       string         `gorm:"not null" json:"status"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt  sql.NullTime   `json:"completed_at"`
	Stats        datatypes.JSON `gorm:"type:jsonb" json:"stats"`
	ErrorMessage sql.NullString `json:"error_message"`
}

// TableName specifies the table name for the PipelineRun model.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
