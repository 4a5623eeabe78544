package planner

import (
	"math"
	"sort"

	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/readiness"
)

// Requirements derives what each tenant needs at the destination from its VMs.
// VMs without tenant are checked under the unassigned scope, which never has a
// target mapping.
func Requirements(vms []VM, tenants []Tenant, tenantOf map[string]string, mappings []NetworkMapping, s Settings) []readiness.Requirement {
	byKey := make(map[string]Tenant, len(tenants))
	for _, t := range tenants {
		byKey[t.Key] = t
	}

	global := make(map[string]string)
	scoped := make(map[string]map[string]string)
	for _, m := range mappings {
		if m.Tenant == "" {
			global[m.Source] = m.Target
			continue
		}
		if scoped[m.Tenant] == nil {
			scoped[m.Tenant] = make(map[string]string)
		}
		scoped[m.Tenant][m.Source] = m.Target
	}

	type acc struct {
		req      readiness.Requirement
		networks map[string]bool
		shapes   map[readiness.Shape]bool
		families map[string]bool
	}
	accs := make(map[string]*acc)
	for _, vm := range vms {
		scope := tenantOf[vm.Key]
		if scope == "" {
			scope = grouping.UnassignedCohort
		}
		a, ok := accs[scope]
		if !ok {
			t := byKey[scope]
			a = &acc{
				req: readiness.Requirement{
					Scope:          scope,
					Domain:         t.Domain,
					Project:        t.Project,
					Router:         t.Router,
					SecurityGroup:  t.SecurityGroup,
					FloatingIPPool: t.FloatingIPPool,
					CPUOvercommit:  s.CPUOvercommit,
					RAMOvercommit:  s.RAMOvercommit,
				},
				networks: make(map[string]bool),
				shapes:   make(map[readiness.Shape]bool),
				families: make(map[string]bool),
			}
			accs[scope] = a
		}

		for _, n := range vm.Networks {
			a.networks[n] = true
		}
		a.shapes[readiness.Shape{
			VCPU:   vm.VCPU,
			RAMMB:  int(math.Ceil(vm.RAMGB * 1024)),
			DiskGB: int(math.Ceil(vm.ProvisionedGB)),
		}] = true
		if f := vm.Family(); f != "" && f != "other" {
			a.families[f] = true
		}
		a.req.VCPU += vm.VCPU
		a.req.RAMMB += int(math.Ceil(vm.RAMGB * 1024))
		a.req.Instances++
	}

	scopes := make([]string, 0, len(accs))
	for k := range accs {
		scopes = append(scopes, k)
	}
	sort.Strings(scopes)

	out := make([]readiness.Requirement, 0, len(scopes))
	for _, scope := range scopes {
		a := accs[scope]
		for _, n := range sortedKeys(a.networks) {
			target, ok := scoped[scope][n]
			if !ok {
				target = global[n]
			}
			a.req.Networks = append(a.req.Networks, readiness.NetworkMapping{Source: n, Target: target})
		}
		for sh := range a.shapes {
			a.req.Shapes = append(a.req.Shapes, sh)
		}
		sort.Slice(a.req.Shapes, func(i, j int) bool { return a.req.Shapes[i].String() < a.req.Shapes[j].String() })
		a.req.OSFamilies = sortedKeys(a.families)
		out = append(out, a.req)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
