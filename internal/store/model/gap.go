package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/readiness"
)

type TargetGap struct {
	ID           uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
	ProjectID    uuid.UUID `gorm:"not null;type:VARCHAR(255);uniqueIndex:target_gaps_identity"`
	Scope        string    `gorm:"not null;uniqueIndex:target_gaps_identity"`
	Type         string    `gorm:"not null;uniqueIndex:target_gaps_identity"`
	Resource     string    `gorm:"not null;default:'';uniqueIndex:target_gaps_identity"`
	Severity     string    `gorm:"not null;type:VARCHAR(16)"`
	Message      string
	Status       string `gorm:"not null;type:VARCHAR(16)"`
	AutoResolved bool   `gorm:"column:auto_resolved;not null;default:false"`
	// ResolvedBy and Note are set when an operator resolved or overrode the gap.
	ResolvedBy string `gorm:"column:resolved_by"`
	Note       string
}

type TargetGapList []TargetGap

func (g TargetGap) String() string {
	val, _ := json.Marshal(g)
	return string(val)
}

func (g TargetGap) Record() readiness.Record {
	return readiness.Record{
		Gap: readiness.Gap{
			Scope:    g.Scope,
			Type:     readiness.GapType(g.Type),
			Resource: g.Resource,
			Severity: readiness.Severity(g.Severity),
			Message:  g.Message,
		},
		Status:       readiness.Status(g.Status),
		AutoResolved: g.AutoResolved,
	}
}

// DestinationSnapshot is one capture of the destination cloud inventory.
type DestinationSnapshot struct {
	ID        uint                           `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time                      `gorm:"not null;autoCreateTime"`
	ProjectID uuid.UUID                      `gorm:"not null;type:VARCHAR(255);index:destination_snapshots_project_idx"`
	Source    string                         `gorm:"not null"`
	Inventory *JSONField[readiness.Snapshot] `gorm:"type:jsonb;not null"`
}
