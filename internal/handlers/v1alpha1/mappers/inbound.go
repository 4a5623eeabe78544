package mappers

import (
	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
)

func ProjectFormApi(resource v1alpha1.ProjectCreate) mappers.ProjectCreateForm {
	return mappers.ProjectCreateForm{
		Name:       resource.Name,
		Settings:   resource.Settings,
		RiskConfig: resource.RiskConfig,
	}
}

func VMOverrideFormApi(resource v1alpha1.VMOverrides) mappers.VMOverrideForm {
	return mappers.VMOverrideForm{
		Exclude:      resource.Exclude,
		ManualMode:   resource.ManualMode,
		Priority:     resource.Priority,
		PinnedWave:   resource.PinnedWave,
		PinnedCohort: resource.PinnedCohort,
	}
}

func TenantFormApi(resource v1alpha1.Tenant) mappers.TenantForm {
	return mappers.TenantForm{
		Key:            resource.Key,
		Name:           resource.Name,
		Confirmed:      resource.Confirmed,
		Priority:       resource.Priority,
		CohortKey:      resource.Cohort,
		TargetDomain:   resource.TargetDomain,
		TargetProject:  resource.TargetProject,
		Router:         resource.Router,
		SecurityGroup:  resource.SecurityGroup,
		FloatingIPPool: resource.FloatingIpPool,
	}
}

func CohortFormApi(resource v1alpha1.Cohort) mappers.CohortForm {
	return mappers.CohortForm{
		Key:                resource.Key,
		Name:               resource.Name,
		Position:           resource.Position,
		ConcurrencyCeiling: resource.ConcurrencyCeiling,
		CPUOvercommit:      resource.CpuOvercommit,
		RAMOvercommit:      resource.RamOvercommit,
	}
}

func NetworkMappingsApi(resources []v1alpha1.NetworkMapping) []planner.NetworkMapping {
	out := make([]planner.NetworkMapping, 0, len(resources))
	for _, m := range resources {
		out = append(out, planner.NetworkMapping{Tenant: m.Tenant, Source: m.Source, Target: m.Target})
	}
	return out
}
