package mappers

import (
	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

type ProjectCreateForm struct {
	Name     string
	Owner    string
	Settings *planner.Settings
	// RiskConfig, when set, becomes version 1 of the project's rules and is activated.
	RiskConfig *classifier.Config
}

func (f *ProjectCreateForm) ToModel(defaults planner.Settings) model.Project {
	settings := defaults
	if f.Settings != nil {
		settings = *f.Settings
	}
	return model.NewProject(f.Name, f.Owner, settings)
}

// VMOverrideForm carries the operator overrides of one VM. Nil fields are left
// unchanged, an empty ManualMode clears the mode override.
type VMOverrideForm struct {
	Exclude      *bool
	ManualMode   *string
	Priority     *int
	PinnedWave   *int
	PinnedCohort *string
}

func (f VMOverrideForm) Apply(vm *model.VM) {
	if f.Exclude != nil {
		vm.ExcludeFromMigration = *f.Exclude
	}
	if f.ManualMode != nil {
		if *f.ManualMode == "" {
			vm.ManualModeOverride = nil
		} else {
			mode := *f.ManualMode
			vm.ManualModeOverride = &mode
		}
	}
	if f.Priority != nil {
		vm.Priority = *f.Priority
	}
	if f.PinnedWave != nil {
		vm.PinnedWave = *f.PinnedWave
	}
	if f.PinnedCohort != nil {
		vm.PinnedCohort = *f.PinnedCohort
	}
}

type TenantForm struct {
	Key            string
	Name           *string
	Confirmed      *bool
	Priority       *int
	CohortKey      *string
	TargetDomain   *string
	TargetProject  *string
	Router         *string
	SecurityGroup  *string
	FloatingIPPool *string
}

func (f TenantForm) Apply(t *model.Tenant) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&t.Name, f.Name)
	set(&t.CohortKey, f.CohortKey)
	set(&t.TargetDomain, f.TargetDomain)
	set(&t.TargetProject, f.TargetProject)
	set(&t.Router, f.Router)
	set(&t.SecurityGroup, f.SecurityGroup)
	set(&t.FloatingIPPool, f.FloatingIPPool)
	if f.Confirmed != nil {
		t.Confirmed = *f.Confirmed
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
}

type CohortForm struct {
	Key                string
	Name               string
	Position           int
	ConcurrencyCeiling int
	CPUOvercommit      *float64
	RAMOvercommit      *float64
}

func (f CohortForm) ToModel(projectID uuid.UUID) model.Cohort {
	name := f.Name
	if name == "" {
		name = f.Key
	}
	return model.Cohort{
		ID:                 uuid.New(),
		ProjectID:          projectID,
		Key:                f.Key,
		Name:               name,
		Position:           f.Position,
		ConcurrencyCeiling: f.ConcurrencyCeiling,
		CPUOvercommit:      f.CPUOvercommit,
		RAMOvercommit:      f.RAMOvercommit,
	}
}

// VMFromInventory builds the row of an imported VM. Only inventory columns are
// set, the store keeps computed and override columns of existing rows.
func VMFromInventory(projectID uuid.UUID, vm planner.VM) model.VM {
	out := model.VM{
		ProjectID:          projectID,
		Key:                vm.Key,
		Name:               vm.Name,
		GuestOS:            vm.GuestOS,
		OSFamily:           vm.OSFamily,
		PowerState:         vm.PowerState,
		VCPU:               vm.VCPU,
		RAMGB:              vm.RAMGB,
		ProvisionedGB:      vm.ProvisionedGB,
		InUseGB:            vm.InUseGB,
		DiskCount:          vm.DiskCount,
		NICCount:           vm.NICCount,
		SnapshotCount:      vm.SnapshotCount,
		SnapshotDepth:      vm.SnapshotDepth,
		Flags:              model.MakeJSONField(vm.Flags),
		Networks:           model.MakeJSONField(vm.Networks),
		Folder:             vm.Folder,
		ResourcePool:       vm.ResourcePool,
		Host:               vm.Host,
		Cluster:            vm.Cluster,
		DailyChangeRatePct: vm.DailyChangeRatePct,
		TenantKey:          vm.Tenant,
	}
	if vm.Tenant != "" {
		out.TenantSource = model.TenantSourceInventory
	}
	return out
}

func TenantFromInventory(projectID uuid.UUID, t planner.Tenant) model.Tenant {
	name := t.Name
	if name == "" {
		name = t.Key
	}
	return model.Tenant{
		ProjectID:      projectID,
		Key:            t.Key,
		Name:           name,
		Method:         model.TenantMethodManual,
		Priority:       t.Priority,
		CohortKey:      t.Cohort,
		TargetDomain:   t.Domain,
		TargetProject:  t.Project,
		Router:         t.Router,
		SecurityGroup:  t.SecurityGroup,
		FloatingIPPool: t.FloatingIPPool,
	}
}

// DetectedTenant is the row of a tenant derived by the group pass.
func DetectedTenant(projectID uuid.UUID, t grouping.Tenant) model.Tenant {
	return model.Tenant{
		ProjectID: projectID,
		Key:       t.Name,
		Name:      t.Name,
		Method:    string(t.Method),
		VMCount:   t.VMCount,
		VCPU:      t.VCPU,
		RAMGB:     t.RAMGB,
		DiskGB:    t.DiskGB,
	}
}

func CohortFromPlanner(projectID uuid.UUID, c planner.Cohort) model.Cohort {
	return model.Cohort{
		ID:                 uuid.New(),
		ProjectID:          projectID,
		Key:                c.Key,
		Name:               c.Key,
		Position:           c.Order,
		ConcurrencyCeiling: c.ConcurrencyCeiling,
		Auto:               c.Auto,
	}
}

func MappingFromPlanner(projectID uuid.UUID, m planner.NetworkMapping) model.NetworkMapping {
	return model.NetworkMapping{ProjectID: projectID, TenantKey: m.Tenant, Source: m.Source, Target: m.Target}
}

// ApplyClassification writes c to the classification columns of vm.
func ApplyClassification(vm *model.VM, riskConfigID uuid.UUID, c planner.Classification) {
	id := riskConfigID
	vm.RiskConfigID = &id
	vm.RiskScore = c.Score
	vm.RiskCategory = string(c.Category)
	vm.RiskReasons = model.MakeJSONField(nonNil(c.Reasons))
	vm.ComputedMode = string(c.ComputedMode)
	vm.ModeReasons = model.MakeJSONField(nonNil(c.ModeReasons))
	vm.MigrationMode = string(c.Mode)
	vm.ModeSource = string(c.ModeSource)
}

func ApplyEstimate(vm *model.VM, e planner.Estimate) {
	vm.DataGB = e.DataGB
	vm.EffectiveMBps = e.EffectiveMBps
	vm.Bottleneck = e.Bottleneck
	vm.Phase1Hours = e.Phase1.Hours()
	vm.CutoverHours = e.Cutover.Hours()
	vm.TotalHours = e.Total.Hours()
	vm.ProductionImpact = string(e.Impact)
}

func GapFromRecord(projectID uuid.UUID, r readiness.Record) model.TargetGap {
	return model.TargetGap{
		ProjectID:    projectID,
		Scope:        r.Scope,
		Type:         string(r.Type),
		Resource:     r.Resource,
		Severity:     string(r.Severity),
		Message:      r.Message,
		Status:       string(r.Status),
		AutoResolved: r.AutoResolved,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
