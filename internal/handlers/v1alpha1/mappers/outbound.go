package mappers

import (
	"github.com/google/uuid"
	api "github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

func ProjectToApi(p model.Project) api.Project {
	project := api.Project{
		Id:                 p.ID,
		Name:               p.Name,
		Owner:              p.Owner,
		Status:             api.StringToProjectStatus(p.Status),
		ActiveRiskConfigId: p.ActiveRiskConfigID,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.Settings != nil {
		project.Settings = p.Settings.Data
	} else {
		project.Settings = planner.DefaultSettings()
	}
	if p.Summary != nil {
		s := p.Summary.Data
		project.Summary = &api.ProjectSummary{
			VmCount:           s.VMCount,
			ExcludedCount:     s.ExcludedCount,
			TenantCount:       s.TenantCount,
			CohortCount:       s.CohortCount,
			WaveCount:         s.WaveCount,
			TotalDiskGb:       s.TotalDiskGB,
			TotalPhase1Hours:  s.TotalPhase1Hours,
			TotalCutoverHours: s.TotalCutoverHours,
			Categories:        s.Categories,
			ArchivedAt:        s.ArchivedAt,
		}
	}
	return project
}

func ProjectListToApi(projects model.ProjectList) api.ProjectList {
	list := api.ProjectList{}
	for _, p := range projects {
		list = append(list, ProjectToApi(p))
	}
	return list
}

func RiskConfigToApi(rc model.RiskConfig, active *uuid.UUID) api.RiskConfig {
	out := api.RiskConfig{
		Id:        rc.ID,
		Version:   rc.Version,
		Locked:    rc.Locked,
		Active:    active != nil && *active == rc.ID,
		CreatedAt: rc.CreatedAt,
	}
	if rc.Rules != nil {
		out.Rules = rc.Rules.Data
	}
	return out
}

func RiskConfigListToApi(configs model.RiskConfigList, active *uuid.UUID) api.RiskConfigList {
	list := api.RiskConfigList{}
	for _, rc := range configs {
		list = append(list, RiskConfigToApi(rc, active))
	}
	return list
}

func ImportResultToApi(r service.ImportResult) api.ImportResult {
	return api.ImportResult{
		Vms:             r.VMs,
		Tenants:         r.Tenants,
		Dependencies:    r.Dependencies,
		NetworkMappings: r.NetworkMappings,
	}
}

func VMToApi(v model.VM) api.VM {
	vm := api.VM{
		Key:           v.Key,
		Name:          v.Name,
		GuestOs:       v.GuestOS,
		OsFamily:      v.OSFamily,
		PowerState:    v.PowerState,
		Vcpu:          v.VCPU,
		RamGb:         v.RAMGB,
		ProvisionedGb: v.ProvisionedGB,
		InUseGb:       v.InUseGB,
		Folder:        v.Folder,
		ResourcePool:  v.ResourcePool,
		Cluster:       v.Cluster,
		Flags:         list(v.Flags),

		Tenant:       v.TenantKey,
		TenantSource: v.TenantSource,
		Cohort:       v.CohortKey,

		RiskConfigId:  v.RiskConfigID,
		RiskScore:     v.RiskScore,
		RiskCategory:  v.RiskCategory,
		RiskReasons:   list(v.RiskReasons),
		ComputedMode:  v.ComputedMode,
		ModeReasons:   list(v.ModeReasons),
		MigrationMode: v.MigrationMode,
		ModeSource:    v.ModeSource,

		DataGb:           v.DataGB,
		EffectiveMbps:    v.EffectiveMBps,
		Bottleneck:       v.Bottleneck,
		Phase1Hours:      v.Phase1Hours,
		CutoverHours:     v.CutoverHours,
		TotalHours:       v.TotalHours,
		ProductionImpact: v.ProductionImpact,

		ErrorStage:  v.ErrorStage,
		ErrorReason: v.ErrorReason,

		WaveId:    v.WaveID,
		WaveOrder: v.WaveOrder,
	}

	exclude, priority, pinnedWave := v.ExcludeFromMigration, v.Priority, v.PinnedWave
	vm.Overrides = api.VMOverrides{
		Exclude:    &exclude,
		ManualMode: v.ManualModeOverride,
		Priority:   &priority,
		PinnedWave: &pinnedWave,
	}
	if v.PinnedCohort != "" {
		pinnedCohort := v.PinnedCohort
		vm.Overrides.PinnedCohort = &pinnedCohort
	}
	return vm
}

func VMListToApi(vms model.VMList, total int64) api.VMList {
	items := make([]api.VM, 0, len(vms))
	for _, v := range vms {
		items = append(items, VMToApi(v))
	}
	return api.VMList{Items: items, Total: total}
}

func DependencyListToApi(deps model.VMDependencyList) api.DependencyList {
	list := api.DependencyList{}
	for _, d := range deps {
		list = append(list, api.Dependency{Vm: d.VMKey, DependsOn: d.DependsOnKey})
	}
	return list
}

func TenantToApi(t model.Tenant) api.Tenant {
	confirmed, priority := t.Confirmed, t.Priority
	tenant := api.Tenant{
		Key:       t.Key,
		Name:      &t.Name,
		Method:    t.Method,
		Confirmed: &confirmed,
		Priority:  &priority,
		VmCount:   t.VMCount,
		Vcpu:      t.VCPU,
		RamGb:     t.RAMGB,
		DiskGb:    t.DiskGB,
	}
	tenant.Cohort = optional(t.CohortKey)
	tenant.TargetDomain = optional(t.TargetDomain)
	tenant.TargetProject = optional(t.TargetProject)
	tenant.Router = optional(t.Router)
	tenant.SecurityGroup = optional(t.SecurityGroup)
	tenant.FloatingIpPool = optional(t.FloatingIPPool)
	return tenant
}

func TenantListToApi(tenants model.TenantList) api.TenantList {
	list := api.TenantList{}
	for _, t := range tenants {
		list = append(list, TenantToApi(t))
	}
	return list
}

func CohortToApi(c model.Cohort) api.Cohort {
	return api.Cohort{
		Key:                c.Key,
		Name:               c.Name,
		Position:           c.Position,
		ConcurrencyCeiling: c.ConcurrencyCeiling,
		CpuOvercommit:      c.CPUOvercommit,
		RamOvercommit:      c.RAMOvercommit,
		Auto:               c.Auto,
	}
}

func CohortListToApi(cohorts model.CohortList) api.CohortList {
	list := api.CohortList{}
	for _, c := range cohorts {
		list = append(list, CohortToApi(c))
	}
	return list
}

func NetworkMappingListToApi(mappings model.NetworkMappingList) api.NetworkMappingList {
	list := api.NetworkMappingList{}
	for _, m := range mappings {
		list = append(list, api.NetworkMapping{Tenant: m.TenantKey, Source: m.Source, Target: m.Target})
	}
	return list
}

func PassToApi(p model.Pass) api.Pass {
	pass := api.Pass{
		Id:              p.ID,
		Kind:            p.Kind,
		Status:          p.Status,
		Cohort:          p.CohortKey,
		IgnoreOverrides: p.IgnoreOverrides,
		VmsAffected:     p.VMsAffected,
		CohortsAffected: p.CohortsAffected,
		Error:           p.Error,
		StartedAt:       p.StartedAt,
		FinishedAt:      p.FinishedAt,
	}
	if p.Failures != nil {
		for _, f := range p.Failures.Data {
			pass.Failures = append(pass.Failures, api.PassFailure{Vm: f.Key, Stage: string(f.Stage), Reason: f.Reason})
		}
	}
	return pass
}

func PassListToApi(passes ...model.PassList) api.PassList {
	list := api.PassList{}
	for _, group := range passes {
		for _, p := range group {
			list = append(list, PassToApi(p))
		}
	}
	return list
}

func WaveToApi(w model.Wave) api.Wave {
	return api.Wave{
		Id:                    w.ID,
		Cohort:                w.CohortKey,
		Index:                 w.Index,
		Sequence:              w.Sequence,
		Status:                api.StringToWaveStatus(w.Status),
		VmCount:               w.VMCount,
		DiskGb:                w.DiskGB,
		Phase1Hours:           w.Phase1Hours,
		CutoverHours:          w.CutoverHours,
		TotalHours:            w.TotalHours,
		ValidationHours:       w.ValidationHours,
		Bottleneck:            w.Bottleneck,
		BottleneckVm:          w.BottleneckVM,
		BottleneckExplanation: w.BottleneckExplanation,
		Vms:                   w.MemberKeys(),
	}
}

func WaveListToApi(waves model.WaveList) api.WaveList {
	list := api.WaveList{}
	for _, w := range waves {
		list = append(list, WaveToApi(w))
	}
	return list
}

func GapToApi(g model.TargetGap) api.Gap {
	return api.Gap{
		Id:           g.ID,
		Scope:        g.Scope,
		Type:         g.Type,
		Resource:     g.Resource,
		Severity:     g.Severity,
		Message:      g.Message,
		Status:       g.Status,
		AutoResolved: g.AutoResolved,
		ResolvedBy:   g.ResolvedBy,
		Note:         g.Note,
		UpdatedAt:    g.UpdatedAt,
	}
}

func GapListToApi(gaps model.TargetGapList) api.GapList {
	list := api.GapList{}
	for _, g := range gaps {
		list = append(list, GapToApi(g))
	}
	return list
}

func list(f *model.JSONField[[]string]) []string {
	if f == nil {
		return nil
	}
	return f.Data
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
