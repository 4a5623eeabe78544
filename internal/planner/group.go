package planner

import (
	"sort"

	"github.com/kubev2v/wave-planner/internal/grouping"
)

type GroupInput struct {
	VMs          []VM
	Tenants      []Tenant
	Cohorts      []Cohort
	Dependencies []grouping.Edge
	// Detect derives tenants for VMs without one, nil to skip detection.
	Detect *grouping.DetectOptions
}

type GroupResult struct {
	Graph *grouping.Graph
	// Detected lists tenants derived for VMs that had none. Their key is their name.
	Detected []grouping.Tenant
	// Cohorts holds the explicit cohorts and the automatic ones, sorted by order then key.
	Cohorts  []Cohort
	TenantOf map[string]string
	CohortOf map[string]string
}

// Group validates the dependency graph, detects missing tenants and assigns every
// VM to a cohort. Tenants without explicit cohort land in a per-priority
// cohort, VMs without tenant in the trailing unassigned cohort, and a VM pinned
// to a cohort always lands there. A cyclic dependency fails the pass with a
// *grouping.CycleError naming the offending edge.
func Group(in GroupInput) (*GroupResult, error) {
	res := &GroupResult{
		Graph:    grouping.NewGraph(),
		TenantOf: make(map[string]string, len(in.VMs)),
		CohortOf: make(map[string]string, len(in.VMs)),
	}

	for _, vm := range in.VMs {
		res.Graph.AddNode(vm.Key)
	}
	edges := make([]grouping.Edge, len(in.Dependencies))
	copy(edges, in.Dependencies)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].VM != edges[j].VM {
			return edges[i].VM < edges[j].VM
		}
		return edges[i].DependsOn < edges[j].DependsOn
	})
	for _, e := range edges {
		if err := res.Graph.AddEdge(e.VM, e.DependsOn); err != nil {
			return nil, err
		}
	}

	var undetected []grouping.Member
	for _, vm := range in.VMs {
		if vm.Tenant != "" {
			res.TenantOf[vm.Key] = vm.Tenant
			continue
		}
		undetected = append(undetected, grouping.Member{
			Key:          vm.Key,
			Name:         vm.Name,
			Folder:       vm.Folder,
			ResourcePool: vm.ResourcePool,
			VCPU:         vm.VCPU,
			RAMGB:        vm.RAMGB,
			DiskGB:       vm.ProvisionedGB,
		})
	}
	if in.Detect != nil && len(undetected) > 0 {
		detected, err := grouping.DetectTenants(undetected, *in.Detect)
		if err != nil {
			return nil, err
		}
		res.Detected = detected
		for _, t := range detected {
			for _, m := range t.Members {
				res.TenantOf[m] = t.Name
			}
		}
	}

	// Tenants referenced only by VMs (detected or unknown rows) join priority 0.
	tenants := make(map[string]Tenant, len(in.Tenants))
	for _, t := range in.Tenants {
		tenants[t.Key] = t
	}
	for _, tk := range res.TenantOf {
		if _, ok := tenants[tk]; !ok {
			tenants[tk] = Tenant{Key: tk, Name: tk}
		}
	}

	known := make(map[string]bool, len(in.Cohorts))
	maxOrder := 0
	for _, c := range in.Cohorts {
		known[c.Key] = true
		res.Cohorts = append(res.Cohorts, c)
		if c.Order > maxOrder {
			maxOrder = c.Order
		}
	}

	refs := make([]grouping.TenantRef, 0, len(tenants))
	for _, t := range tenants {
		cohort := t.Cohort
		if cohort != "" && !known[cohort] {
			cohort = ""
		}
		refs = append(refs, grouping.TenantRef{Key: t.Key, Priority: t.Priority, Cohort: cohort})
	}
	tenantCohort := make(map[string]string, len(refs))
	for _, r := range refs {
		if r.Cohort != "" {
			tenantCohort[r.Key] = r.Cohort
		}
	}
	for _, plan := range grouping.AutoCohorts(refs) {
		if !known[plan.Name] {
			known[plan.Name] = true
			res.Cohorts = append(res.Cohorts, Cohort{Key: plan.Name, Order: plan.Priority, Auto: true})
			if plan.Priority > maxOrder {
				maxOrder = plan.Priority
			}
		}
		for _, tk := range plan.Tenants {
			tenantCohort[tk] = plan.Name
		}
	}

	needUnassigned := false
	for _, vm := range in.VMs {
		switch {
		case vm.PinnedCohort != "" && known[vm.PinnedCohort]:
			res.CohortOf[vm.Key] = vm.PinnedCohort
		case res.TenantOf[vm.Key] != "":
			res.CohortOf[vm.Key] = tenantCohort[res.TenantOf[vm.Key]]
		default:
			res.CohortOf[vm.Key] = grouping.UnassignedCohort
			needUnassigned = true
		}
	}
	if needUnassigned && !known[grouping.UnassignedCohort] {
		res.Cohorts = append(res.Cohorts, Cohort{Key: grouping.UnassignedCohort, Order: maxOrder + 1, Auto: true})
	}

	sort.SliceStable(res.Cohorts, func(i, j int) bool {
		if res.Cohorts[i].Order != res.Cohorts[j].Order {
			return res.Cohorts[i].Order < res.Cohorts[j].Order
		}
		return res.Cohorts[i].Key < res.Cohorts[j].Key
	})
	return res, nil
}
