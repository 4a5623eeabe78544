package v1alpha1

import (
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/planner"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusAssessment ProjectStatus = "assessment"
	ProjectStatusPlanned    ProjectStatus = "planned"
	ProjectStatusApproved   ProjectStatus = "approved"
	ProjectStatusPreparing  ProjectStatus = "preparing"
	ProjectStatusReady      ProjectStatus = "ready"
	ProjectStatusExecuting  ProjectStatus = "executing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
	ProjectStatusArchived   ProjectStatus = "archived"
)

type WaveStatus string

const (
	WaveStatusPlanned         WaveStatus = "planned"
	WaveStatusPreChecksPassed WaveStatus = "pre_checks_passed"
	WaveStatusExecuting       WaveStatus = "executing"
	WaveStatusValidating      WaveStatus = "validating"
	WaveStatusComplete        WaveStatus = "complete"
	WaveStatusFailed          WaveStatus = "failed"
	WaveStatusCancelled       WaveStatus = "cancelled"
)

type Error struct {
	Message string `json:"message"`
	// Details carries the offending keys: the cycle path, the blocking gaps.
	Details []string `json:"details,omitempty"`
}

type Info struct {
	GitCommit   string `json:"gitCommit"`
	VersionName string `json:"versionName"`
}

type Project struct {
	Id                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Owner              string           `json:"owner"`
	Status             ProjectStatus    `json:"status"`
	ActiveRiskConfigId *uuid.UUID       `json:"activeRiskConfigId,omitempty"`
	Settings           planner.Settings `json:"settings"`
	Summary            *ProjectSummary  `json:"summary,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

type ProjectList []Project

type ProjectSummary struct {
	VmCount           int            `json:"vmCount"`
	ExcludedCount     int            `json:"excludedCount"`
	TenantCount       int            `json:"tenantCount"`
	CohortCount       int            `json:"cohortCount"`
	WaveCount         int            `json:"waveCount"`
	TotalDiskGb       float64        `json:"totalDiskGb"`
	TotalPhase1Hours  float64        `json:"totalPhase1Hours"`
	TotalCutoverHours float64        `json:"totalCutoverHours"`
	Categories        map[string]int `json:"categories"`
	ArchivedAt        time.Time      `json:"archivedAt"`
}

type ProjectCreate struct {
	Name       string             `json:"name" validate:"required,project_name,max=100"`
	Settings   *planner.Settings  `json:"settings,omitempty"`
	RiskConfig *classifier.Config `json:"riskConfig,omitempty"`
}

type ProjectTransition struct {
	Status ProjectStatus `json:"status" validate:"required,project_status"`
}

type RiskConfig struct {
	Id        uuid.UUID         `json:"id"`
	Version   int               `json:"version"`
	Locked    bool              `json:"locked"`
	Active    bool              `json:"active"`
	Rules     classifier.Config `json:"rules"`
	CreatedAt time.Time         `json:"createdAt"`
}

type RiskConfigList []RiskConfig

type RiskConfigCreate struct {
	Rules    classifier.Config `json:"rules"`
	Activate bool              `json:"activate"`
}

type ImportResult struct {
	Vms             int `json:"vms"`
	Tenants         int `json:"tenants"`
	Dependencies    int `json:"dependencies"`
	NetworkMappings int `json:"networkMappings"`
}

type VM struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	GuestOs       string   `json:"guestOs"`
	OsFamily      string   `json:"osFamily,omitempty"`
	PowerState    string   `json:"powerState,omitempty"`
	Vcpu          int      `json:"vcpu"`
	RamGb         float64  `json:"ramGb"`
	ProvisionedGb float64  `json:"provisionedGb"`
	InUseGb       float64  `json:"inUseGb"`
	Folder        string   `json:"folder,omitempty"`
	ResourcePool  string   `json:"resourcePool,omitempty"`
	Cluster       string   `json:"cluster,omitempty"`
	Flags         []string `json:"flags,omitempty"`

	Tenant       string `json:"tenant,omitempty"`
	TenantSource string `json:"tenantSource,omitempty"`
	Cohort       string `json:"cohort,omitempty"`

	RiskConfigId  *uuid.UUID `json:"riskConfigId,omitempty"`
	RiskScore     int        `json:"riskScore"`
	RiskCategory  string     `json:"riskCategory,omitempty"`
	RiskReasons   []string   `json:"riskReasons,omitempty"`
	ComputedMode  string     `json:"computedMode,omitempty"`
	ModeReasons   []string   `json:"modeReasons,omitempty"`
	MigrationMode string     `json:"migrationMode,omitempty"`
	ModeSource    string     `json:"modeSource,omitempty"`

	DataGb           float64 `json:"dataGb"`
	EffectiveMbps    float64 `json:"effectiveMBps"`
	Bottleneck       string  `json:"bottleneck,omitempty"`
	Phase1Hours      float64 `json:"phase1Hours"`
	CutoverHours     float64 `json:"cutoverHours"`
	TotalHours       float64 `json:"totalHours"`
	ProductionImpact string  `json:"productionImpact,omitempty"`

	ErrorStage  string `json:"errorStage,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`

	Overrides VMOverrides `json:"overrides"`
	WaveId    *uuid.UUID  `json:"waveId,omitempty"`
	WaveOrder int         `json:"waveOrder,omitempty"`
}

type VMList struct {
	Items []VM  `json:"items"`
	Total int64 `json:"total"`
}

type VMOverrides struct {
	Exclude *bool `json:"exclude,omitempty"`
	// ManualMode is warm or cold, an empty string clears the override.
	ManualMode   *string `json:"manualMode,omitempty" validate:"omitempty,mode"`
	Priority     *int    `json:"priority,omitempty"`
	PinnedWave   *int    `json:"pinnedWave,omitempty" validate:"omitempty,min=0"`
	PinnedCohort *string `json:"pinnedCohort,omitempty"`
}

type Dependency struct {
	Vm        string `json:"vm" validate:"required"`
	DependsOn string `json:"dependsOn" validate:"required,nefield=Vm"`
}

type DependencyList []Dependency

type Tenant struct {
	Key            string  `json:"key" validate:"required,key"`
	Name           *string `json:"name,omitempty"`
	Method         string  `json:"method,omitempty"`
	Confirmed      *bool   `json:"confirmed,omitempty"`
	Priority       *int    `json:"priority,omitempty"`
	Cohort         *string `json:"cohort,omitempty"`
	TargetDomain   *string `json:"targetDomain,omitempty"`
	TargetProject  *string `json:"targetProject,omitempty"`
	Router         *string `json:"router,omitempty"`
	SecurityGroup  *string `json:"securityGroup,omitempty"`
	FloatingIpPool *string `json:"floatingIpPool,omitempty"`
	VmCount        int     `json:"vmCount"`
	Vcpu           int     `json:"vcpu"`
	RamGb          float64 `json:"ramGb"`
	DiskGb         float64 `json:"diskGb"`
}

type TenantList []Tenant

type Cohort struct {
	Key                string   `json:"key" validate:"required,key"`
	Name               string   `json:"name,omitempty"`
	Position           int      `json:"position"`
	ConcurrencyCeiling int      `json:"concurrencyCeiling,omitempty" validate:"min=0"`
	CpuOvercommit      *float64 `json:"cpuOvercommit,omitempty" validate:"omitempty,gt=0"`
	RamOvercommit      *float64 `json:"ramOvercommit,omitempty" validate:"omitempty,gt=0"`
	Auto               bool     `json:"auto"`
}

type CohortList []Cohort

type NetworkMapping struct {
	Tenant string `json:"tenant,omitempty"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

type NetworkMappingList []NetworkMapping

type PassRequest struct {
	Cohort             *string `json:"cohort,omitempty"`
	IgnoreOverrides    bool    `json:"ignoreOverrides"`
	RefreshDestination bool    `json:"refreshDestination"`
}

type PassFailure struct {
	Vm     string `json:"vm"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type Pass struct {
	Id              uuid.UUID     `json:"id"`
	Kind            string        `json:"kind"`
	Status          string        `json:"status"`
	Cohort          string        `json:"cohort,omitempty"`
	IgnoreOverrides bool          `json:"ignoreOverrides"`
	VmsAffected     int           `json:"vmsAffected"`
	CohortsAffected int           `json:"cohortsAffected"`
	Failures        []PassFailure `json:"failures,omitempty"`
	Error           string        `json:"error,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      *time.Time    `json:"finishedAt,omitempty"`
}

type PassList []Pass

type Wave struct {
	Id                    uuid.UUID  `json:"id"`
	Cohort                string     `json:"cohort"`
	Index                 int        `json:"index"`
	Sequence              int        `json:"sequence"`
	Status                WaveStatus `json:"status"`
	VmCount               int        `json:"vmCount"`
	DiskGb                float64    `json:"diskGb"`
	Phase1Hours           float64    `json:"phase1Hours"`
	CutoverHours          float64    `json:"cutoverHours"`
	TotalHours            float64    `json:"totalHours"`
	ValidationHours       float64    `json:"validationHours"`
	Bottleneck            string     `json:"bottleneck,omitempty"`
	BottleneckVm          string     `json:"bottleneckVm,omitempty"`
	BottleneckExplanation string     `json:"bottleneckExplanation,omitempty"`
	Vms                   []string   `json:"vms"`
}

type WaveList []Wave

type WaveTransition struct {
	Status WaveStatus `json:"status" validate:"required,wave_status"`
}

type Gap struct {
	Id           uuid.UUID `json:"id"`
	Scope        string    `json:"scope"`
	Type         string    `json:"type"`
	Resource     string    `json:"resource,omitempty"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	AutoResolved bool      `json:"autoResolved"`
	ResolvedBy   string    `json:"resolvedBy,omitempty"`
	Note         string    `json:"note,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type GapList []Gap

type GapResolution struct {
	Status string `json:"status" validate:"required,oneof=open resolved overridden"`
	Note   string `json:"note,omitempty" validate:"max=1000"`
}
