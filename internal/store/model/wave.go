package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wave lifecycle states.
const (
	WaveStatusPlanned         = "planned"
	WaveStatusPreChecksPassed = "pre_checks_passed"
	WaveStatusExecuting       = "executing"
	WaveStatusValidating      = "validating"
	WaveStatusComplete        = "complete"
	WaveStatusFailed          = "failed"
	WaveStatusCancelled       = "cancelled"
)

// FrozenWaveStatuses are the states in which a wave's membership never changes.
var FrozenWaveStatuses = []string{WaveStatusExecuting, WaveStatusValidating, WaveStatusComplete, WaveStatusFailed}

type Cohort struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ProjectID uuid.UUID `gorm:"not null;type:VARCHAR(255);uniqueIndex:cohorts_project_key"`
	Key       string    `gorm:"column:key;not null;uniqueIndex:cohorts_project_key"`
	Name      string
	Position  int `gorm:"column:position;not null;default:0"`
	// ConcurrencyCeiling overrides the project agent concurrency when positive.
	ConcurrencyCeiling int      `gorm:"column:concurrency_ceiling;not null;default:0"`
	CPUOvercommit      *float64 `gorm:"column:cpu_overcommit"`
	RAMOvercommit      *float64 `gorm:"column:ram_overcommit"`
	Auto               bool     `gorm:"not null;default:false"`
}

type CohortList []Cohort

type Wave struct {
	ID        uuid.UUID  `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	ProjectID uuid.UUID  `gorm:"not null;type:VARCHAR(255);index:waves_project_idx"`
	PassID    *uuid.UUID `gorm:"column:pass_id;type:VARCHAR(255)"`
	CohortKey string     `gorm:"column:cohort_key;not null"`
	// Index is 1-based within the cohort, Sequence 1-based across the project.
	Index    int    `gorm:"column:wave_index;not null"`
	Sequence int    `gorm:"column:sequence;not null"`
	Status   string `gorm:"not null;type:VARCHAR(32)"`

	VMCount         int     `gorm:"column:vm_count"`
	DiskGB          float64 `gorm:"column:disk_gb"`
	Phase1Hours     float64 `gorm:"column:phase1_hours"`
	CutoverHours    float64 `gorm:"column:cutover_hours"`
	TotalHours      float64 `gorm:"column:total_hours"`
	ValidationHours float64 `gorm:"column:validation_hours"`

	Bottleneck            string
	BottleneckVM          string `gorm:"column:bottleneck_vm"`
	BottleneckExplanation string `gorm:"column:bottleneck_explanation"`

	VMs []VM `gorm:"foreignKey:WaveID;references:ID"`
}

type WaveList []Wave

func (w Wave) String() string {
	val, _ := json.Marshal(w)
	return string(val)
}

// Frozen reports whether the wave reached a state where its membership is fixed.
func (w Wave) Frozen() bool {
	for _, s := range FrozenWaveStatuses {
		if w.Status == s {
			return true
		}
	}
	return false
}

// MemberKeys returns the member VM keys in wave order. VMs must be preloaded.
func (w Wave) MemberKeys() []string {
	keys := make([]string, len(w.VMs))
	for i, vm := range w.VMs {
		keys[i] = vm.Key
	}
	return keys
}
