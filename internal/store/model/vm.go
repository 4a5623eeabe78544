package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Where a VM's tenant key came from.
const (
	TenantSourceInventory = "inventory"
	TenantSourceDetected  = "detected"
)

// VM is one inventory row of a project. Computed columns are rewritten by the
// planning passes; the override columns are only written by the operator.
type VM struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	ProjectID uuid.UUID `gorm:"not null;type:VARCHAR(255);uniqueIndex:vms_project_key"`
	Key       string    `gorm:"column:key;not null;uniqueIndex:vms_project_key"`

	Name               string               `gorm:"not null"`
	GuestOS            string               `gorm:"column:guest_os"`
	OSFamily           string               `gorm:"column:os_family"`
	PowerState         string               `gorm:"column:power_state"`
	VCPU               int                  `gorm:"column:vcpu"`
	RAMGB              float64              `gorm:"column:ram_gb"`
	ProvisionedGB      float64              `gorm:"column:provisioned_gb"`
	InUseGB            float64              `gorm:"column:in_use_gb"`
	DiskCount          int                  `gorm:"column:disk_count"`
	NICCount           int                  `gorm:"column:nic_count"`
	SnapshotCount      int                  `gorm:"column:snapshot_count"`
	SnapshotDepth      int                  `gorm:"column:snapshot_depth"`
	Flags              *JSONField[[]string] `gorm:"type:jsonb"`
	Networks           *JSONField[[]string] `gorm:"type:jsonb"`
	Folder             string
	ResourcePool       string `gorm:"column:resource_pool"`
	Host               string
	Cluster            string
	DailyChangeRatePct float64 `gorm:"column:daily_change_rate_pct"`
	TenantKey          string  `gorm:"column:tenant_key;index:vms_tenant_idx"`
	TenantSource       string  `gorm:"column:tenant_source"`

	// classification
	RiskConfigID  *uuid.UUID           `gorm:"column:risk_config_id;type:VARCHAR(255)"`
	RiskScore     int                  `gorm:"column:risk_score"`
	RiskCategory  string               `gorm:"column:risk_category"`
	RiskReasons   *JSONField[[]string] `gorm:"column:risk_reasons;type:jsonb"`
	ComputedMode  string               `gorm:"column:computed_mode"`
	ModeReasons   *JSONField[[]string] `gorm:"column:mode_reasons;type:jsonb"`
	MigrationMode string               `gorm:"column:migration_mode"`
	ModeSource    string               `gorm:"column:mode_source"`

	// estimation
	DataGB           float64 `gorm:"column:data_gb"`
	EffectiveMBps    float64 `gorm:"column:effective_mbps"`
	Bottleneck       string  `gorm:"column:bottleneck"`
	Phase1Hours      float64 `gorm:"column:phase1_hours"`
	CutoverHours     float64 `gorm:"column:cutover_hours"`
	TotalHours       float64 `gorm:"column:total_hours"`
	ProductionImpact string  `gorm:"column:production_impact"`

	// ErrorStage and ErrorReason record why the VM was left out of scheduling.
	ErrorStage  string `gorm:"column:error_stage"`
	ErrorReason string `gorm:"column:error_reason"`

	// operator overrides
	ExcludeFromMigration bool    `gorm:"column:exclude_from_migration;not null;default:false"`
	ManualModeOverride   *string `gorm:"column:manual_mode_override"`
	Priority             int     `gorm:"column:priority;not null;default:0"`
	PinnedWave           int     `gorm:"column:pinned_wave;not null;default:0"`
	PinnedCohort         string  `gorm:"column:pinned_cohort"`

	// placement
	CohortKey string     `gorm:"column:cohort_key"`
	WaveID    *uuid.UUID `gorm:"column:wave_id;type:VARCHAR(255);index:vms_wave_idx"`
	WaveOrder int        `gorm:"column:wave_order"`
}

type VMList []VM

func (v VM) String() string {
	val, _ := json.Marshal(v)
	return string(val)
}

// Classified reports whether a classification pass scored the VM.
func (v VM) Classified() bool {
	return v.RiskConfigID != nil
}

// Schedulable reports whether the VM takes part in grouping and scheduling.
func (v VM) Schedulable() bool {
	return !v.ExcludeFromMigration && v.ErrorStage == ""
}

// VMDependency means the VM identified by VMKey may not start before DependsOnKey completed.
type VMDependency struct {
	ProjectID    uuid.UUID `gorm:"primaryKey;type:VARCHAR(255);"`
	VMKey        string    `gorm:"primaryKey;column:vm_key"`
	DependsOnKey string    `gorm:"primaryKey;column:depends_on_key"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime"`
}

type VMDependencyList []VMDependency

// Tenant detection methods, manual for operator declared tenants.
const (
	TenantMethodManual = "manual"
)

type Tenant struct {
	ID        uuid.UUID `gorm:"primaryKey;column:id;type:VARCHAR(255);"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	ProjectID uuid.UUID `gorm:"not null;type:VARCHAR(255);uniqueIndex:tenants_project_key"`
	Key       string    `gorm:"column:key;not null;uniqueIndex:tenants_project_key"`
	Name      string    `gorm:"not null"`
	Method    string    `gorm:"not null;default:manual"`
	Confirmed bool      `gorm:"not null;default:false"`
	Priority  int       `gorm:"not null;default:0"`
	// CohortKey is the explicitly assigned cohort, empty for automatic cohorting.
	CohortKey string `gorm:"column:cohort_key"`

	TargetDomain   string `gorm:"column:target_domain"`
	TargetProject  string `gorm:"column:target_project"`
	Router         string
	SecurityGroup  string `gorm:"column:security_group"`
	FloatingIPPool string `gorm:"column:floating_ip_pool"`

	VMCount int     `gorm:"column:vm_count"`
	VCPU    int     `gorm:"column:vcpu"`
	RAMGB   float64 `gorm:"column:ram_gb"`
	DiskGB  float64 `gorm:"column:disk_gb"`
}

type TenantList []Tenant

// NetworkMapping maps a source network to a destination network. An empty
// TenantKey applies to every tenant of the project.
type NetworkMapping struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ProjectID uuid.UUID `gorm:"not null;type:VARCHAR(255);uniqueIndex:network_mappings_project_tenant_source"`
	TenantKey string    `gorm:"column:tenant_key;not null;default:'';uniqueIndex:network_mappings_project_tenant_source"`
	Source    string    `gorm:"not null;uniqueIndex:network_mappings_project_tenant_source"`
	Target    string
}

type NetworkMappingList []NetworkMapping
