package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/planner"
)

// Pass kinds.
const (
	PassKindClassify  = "classify"
	PassKindEstimate  = "estimate"
	PassKindGroup     = "group"
	PassKindSchedule  = "schedule"
	PassKindReadiness = "readiness"
)

// Pass states.
const (
	PassStatusRunning    = "running"
	PassStatusCompleted  = "completed"
	PassStatusFailed     = "failed"
	PassStatusSuperseded = "superseded"
)

// Pass records one run of a planning pass over a project.
type Pass struct {
	ID              uuid.UUID                     `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	ProjectID       uuid.UUID                     `gorm:"not null;type:VARCHAR(255);index:passes_project_idx"`
	Kind            string                        `gorm:"not null;type:VARCHAR(16)"`
	Status          string                        `gorm:"not null;type:VARCHAR(16)"`
	CohortKey       string                        `gorm:"column:cohort_key"`
	IgnoreOverrides bool                          `gorm:"column:ignore_overrides;not null;default:false"`
	VMsAffected     int                           `gorm:"column:vms_affected"`
	CohortsAffected int                           `gorm:"column:cohorts_affected"`
	Failures        *JSONField[[]planner.Failure] `gorm:"type:jsonb"`
	Error           string
	StartedAt       time.Time  `gorm:"column:started_at;not null"`
	FinishedAt      *time.Time `gorm:"column:finished_at"`
}

type PassList []Pass

func (p Pass) String() string {
	val, _ := json.Marshal(p)
	return string(val)
}

func NewPass(projectID uuid.UUID, kind string) Pass {
	return Pass{
		ID:        uuid.New(),
		ProjectID: projectID,
		Kind:      kind,
		Status:    PassStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}
