package mappers

import (
	"time"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

// PlannerVM converts a stored row to the planner view, overrides included.
func PlannerVM(vm model.VM) planner.VM {
	out := planner.VM{
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
		Flags:              jsonList(vm.Flags),
		Networks:           jsonList(vm.Networks),
		Folder:             vm.Folder,
		ResourcePool:       vm.ResourcePool,
		Host:               vm.Host,
		Cluster:            vm.Cluster,
		DailyChangeRatePct: vm.DailyChangeRatePct,
		Tenant:             vm.TenantKey,
		Exclude:            vm.ExcludeFromMigration,
		Priority:           vm.Priority,
		PinnedWave:         vm.PinnedWave,
		PinnedCohort:       vm.PinnedCohort,
	}
	if vm.ManualModeOverride != nil {
		if mode, err := classifier.ParseMode(*vm.ManualModeOverride); err == nil {
			out.ManualMode = &mode
		}
	}
	return out
}

func PlannerTenant(t model.Tenant) planner.Tenant {
	return planner.Tenant{
		Key:            t.Key,
		Name:           t.Name,
		Priority:       t.Priority,
		Cohort:         t.CohortKey,
		Domain:         t.TargetDomain,
		Project:        t.TargetProject,
		Router:         t.Router,
		SecurityGroup:  t.SecurityGroup,
		FloatingIPPool: t.FloatingIPPool,
	}
}

func PlannerCohort(c model.Cohort) planner.Cohort {
	return planner.Cohort{
		Key:                c.Key,
		Order:              c.Position,
		ConcurrencyCeiling: c.ConcurrencyCeiling,
		Auto:               c.Auto,
	}
}

func PlannerMapping(m model.NetworkMapping) planner.NetworkMapping {
	return planner.NetworkMapping{Tenant: m.TenantKey, Source: m.Source, Target: m.Target}
}

func Edge(d model.VMDependency) grouping.Edge {
	return grouping.Edge{VM: d.VMKey, DependsOn: d.DependsOnKey}
}

// Classification rebuilds the stored classification of a VM.
func Classification(vm model.VM) planner.Classification {
	return planner.Classification{
		Key: vm.Key,
		Result: classifier.Result{
			Score:        vm.RiskScore,
			Category:     classifier.Category(vm.RiskCategory),
			Reasons:      jsonList(vm.RiskReasons),
			ComputedMode: classifier.Mode(vm.ComputedMode),
			ModeReasons:  jsonList(vm.ModeReasons),
			Mode:         classifier.Mode(vm.MigrationMode),
			ModeSource:   classifier.Provenance(vm.ModeSource),
		},
	}
}

// StoredEstimate rebuilds the estimate the scheduler needs from the stored columns.
func StoredEstimate(vm model.VM) planner.Estimate {
	return planner.Estimate{
		Key:           vm.Key,
		Mode:          classifier.Mode(vm.MigrationMode),
		DataGB:        vm.DataGB,
		EffectiveMBps: vm.EffectiveMBps,
		Bottleneck:    vm.Bottleneck,
		Phase1:        hours(vm.Phase1Hours),
		Cutover:       hours(vm.CutoverHours),
		Total:         hours(vm.TotalHours),
	}
}

func jsonList(f *model.JSONField[[]string]) []string {
	if f == nil {
		return nil
	}
	return f.Data
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
