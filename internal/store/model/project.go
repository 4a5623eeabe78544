package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/planner"
)

// Project lifecycle states.
const (
	ProjectStatusDraft      = "draft"
	ProjectStatusAssessment = "assessment"
	ProjectStatusPlanned    = "planned"
	ProjectStatusApproved   = "approved"
	ProjectStatusPreparing  = "preparing"
	ProjectStatusReady      = "ready"
	ProjectStatusExecuting  = "executing"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
	ProjectStatusArchived   = "archived"
)

type Project struct {
	ID                 uuid.UUID                    `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt          time.Time                    `gorm:"not null;autoCreateTime"`
	UpdatedAt          time.Time                    `gorm:"autoUpdateTime"`
	Name               string                       `gorm:"not null;uniqueIndex:projects_owner_name"`
	Owner              string                       `gorm:"not null;uniqueIndex:projects_owner_name;index:projects_owner_idx"`
	Status             string                       `gorm:"not null;type:VARCHAR(32)"`
	ActiveRiskConfigID *uuid.UUID                   `gorm:"column:active_risk_config_id;type:VARCHAR(255)"`
	Settings           *JSONField[planner.Settings] `gorm:"type:jsonb;not null"`
	// Summary is only set once the project is archived.
	Summary *JSONField[ProjectSummary] `gorm:"type:jsonb"`
}

// ProjectSummary is what an archived project keeps of its plan.
type ProjectSummary struct {
	VMCount           int            `json:"vm_count"`
	ExcludedCount     int            `json:"excluded_count"`
	TenantCount       int            `json:"tenant_count"`
	CohortCount       int            `json:"cohort_count"`
	WaveCount         int            `json:"wave_count"`
	TotalDiskGB       float64        `json:"total_disk_gb"`
	TotalPhase1Hours  float64        `json:"total_phase1_hours"`
	TotalCutoverHours float64        `json:"total_cutover_hours"`
	Categories        map[string]int `json:"categories"`
	ArchivedAt        time.Time      `json:"archived_at"`
}

type ProjectList []Project

func (p Project) String() string {
	val, _ := json.Marshal(p)
	return string(val)
}

func NewProject(name, owner string, settings planner.Settings) Project {
	return Project{
		ID:       uuid.New(),
		Name:     name,
		Owner:    owner,
		Status:   ProjectStatusDraft,
		Settings: MakeJSONField(settings),
	}
}

// RiskConfig is one immutable version of a project's classification rules.
// Locked is set once a classification pass used it.
type RiskConfig struct {
	ID        uuid.UUID                     `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt time.Time                     `gorm:"not null;autoCreateTime"`
	ProjectID uuid.UUID                     `gorm:"not null;type:VARCHAR(255);uniqueIndex:risk_configs_project_version"`
	Version   int                           `gorm:"not null;uniqueIndex:risk_configs_project_version"`
	Rules     *JSONField[classifier.Config] `gorm:"type:jsonb;not null"`
	Locked    bool                          `gorm:"not null;default:false"`
}

type RiskConfigList []RiskConfig
