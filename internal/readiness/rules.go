package readiness

import (
	"fmt"
	"math"
	"strings"
)

// Rules maps each gap type to the severity it is reported with. Gap types
// missing from the map are not checked.
type Rules map[GapType]Severity

func DefaultRules() Rules {
	return Rules{
		GapMissingDomain:         SeverityCritical,
		GapMissingProject:        SeverityCritical,
		GapMissingNetworkMapping: SeverityCritical,
		GapMissingNetwork:        SeverityCritical,
		GapMissingFlavor:         SeverityCritical,
		GapMissingImage:          SeverityWarning,
		GapMissingRouter:         SeverityWarning,
		GapMissingSecurityGroup:  SeverityWarning,
		GapMissingFloatingIPPool: SeverityInfo,
		GapQuotaShortfall:        SeverityCritical,
	}
}

func (r Rules) Validate() error {
	for t, s := range r {
		if !s.Valid() {
			return fmt.Errorf("gap type %q: invalid severity %q", t, s)
		}
	}
	return nil
}

// finding is a gap before severity is attached.
type finding struct {
	resource string
	message  string
}

type checkFn func(r Requirement, idx *index) []finding

type check struct {
	gapType GapType
	fn      checkFn
}

var checks = []check{
	{GapMissingDomain, checkDomain},
	{GapMissingProject, checkProject},
	{GapMissingNetworkMapping, checkNetworkMapping},
	{GapMissingNetwork, checkNetwork},
	{GapMissingFlavor, checkFlavor},
	{GapMissingImage, checkImage},
	{GapMissingRouter, checkRouter},
	{GapMissingSecurityGroup, checkSecurityGroup},
	{GapMissingFloatingIPPool, checkFloatingIPPool},
	{GapQuotaShortfall, checkQuota},
}

func checkDomain(r Requirement, idx *index) []finding {
	if r.Domain == "" {
		return []finding{{message: "no target domain mapped"}}
	}
	if !idx.domains[r.Domain] {
		return []finding{{resource: r.Domain, message: fmt.Sprintf("domain %s does not exist", r.Domain)}}
	}
	return nil
}

// checkProject is skipped while the domain itself is missing.
func checkProject(r Requirement, idx *index) []finding {
	if r.Domain == "" || !idx.domains[r.Domain] {
		return nil
	}
	if r.Project == "" {
		return []finding{{message: "no target project mapped"}}
	}
	if !idx.projects[QuotaKey(r.Domain, r.Project)] {
		return []finding{{
			resource: r.Project,
			message:  fmt.Sprintf("project %s does not exist in domain %s", r.Project, r.Domain),
		}}
	}
	return nil
}

func checkNetworkMapping(r Requirement, _ *index) []finding {
	var out []finding
	for _, m := range r.Networks {
		if m.Target == "" {
			out = append(out, finding{resource: m.Source, message: fmt.Sprintf("source network %s has no target mapping", m.Source)})
		}
	}
	return out
}

func checkNetwork(r Requirement, idx *index) []finding {
	var out []finding
	for _, m := range r.Networks {
		if m.Target != "" && !idx.networks[m.Target] {
			out = append(out, finding{
				resource: m.Target,
				message:  fmt.Sprintf("network %s mapped from %s does not exist", m.Target, m.Source),
			})
		}
	}
	return out
}

// checkFlavor reports every shape no flavor can hold. A flavor with no root disk
// boots from volume and fits any disk size.
func checkFlavor(r Requirement, idx *index) []finding {
	var out []finding
	for _, s := range r.Shapes {
		fits := false
		for _, f := range idx.flavors {
			if f.VCPU >= s.VCPU && f.RAMMB >= s.RAMMB && (f.DiskGB == 0 || f.DiskGB >= s.DiskGB) {
				fits = true
				break
			}
		}
		if !fits {
			out = append(out, finding{resource: s.String(), message: fmt.Sprintf("no flavor fits %s", s)})
		}
	}
	return out
}

func checkImage(r Requirement, idx *index) []finding {
	var out []finding
	for _, family := range r.OSFamilies {
		if !idx.hasImage(family) {
			out = append(out, finding{resource: family, message: fmt.Sprintf("no image for os family %s", family)})
		}
	}
	return out
}

func checkRouter(r Requirement, idx *index) []finding {
	if r.Router == "" || idx.routers[r.Router] {
		return nil
	}
	return []finding{{resource: r.Router, message: fmt.Sprintf("router %s does not exist", r.Router)}}
}

func checkSecurityGroup(r Requirement, idx *index) []finding {
	if r.SecurityGroup == "" || idx.securityGroups[r.SecurityGroup] {
		return nil
	}
	return []finding{{resource: r.SecurityGroup, message: fmt.Sprintf("security group %s does not exist", r.SecurityGroup)}}
}

func checkFloatingIPPool(r Requirement, idx *index) []finding {
	if r.FloatingIPPool == "" || idx.floatingIPPools[r.FloatingIPPool] {
		return nil
	}
	return []finding{{resource: r.FloatingIPPool, message: fmt.Sprintf("floating ip pool %s does not exist", r.FloatingIPPool)}}
}

// checkQuota compares the tenant demand, divided by the overcommit ratios, with
// the free quota of its project. Projects without quota data are not checked.
func checkQuota(r Requirement, idx *index) []finding {
	q, ok := idx.quotas[QuotaKey(r.Domain, r.Project)]
	if !ok {
		return nil
	}

	var out []finding
	shortfall := func(resource string, need, limit, used int) {
		if limit < 0 {
			return
		}
		if free := limit - used; need > free {
			out = append(out, finding{
				resource: resource,
				message:  fmt.Sprintf("%s quota short by %d (need %d, free %d)", resource, need-free, need, free),
			})
		}
	}
	shortfall("cores", overcommitted(r.VCPU, r.CPUOvercommit), q.CoresLimit, q.CoresUsed)
	shortfall("ram", overcommitted(r.RAMMB, r.RAMOvercommit), q.RAMMBLimit, q.RAMMBUsed)
	shortfall("instances", r.Instances, q.InstancesLimit, q.InstancesUsed)
	return out
}

func overcommitted(v int, ratio float64) int {
	if ratio <= 1 {
		return v
	}
	return int(math.Ceil(float64(v) / ratio))
}

// index is the snapshot in lookup form.
type index struct {
	domains         map[string]bool
	projects        map[string]bool
	networks        map[string]bool
	routers         map[string]bool
	securityGroups  map[string]bool
	floatingIPPools map[string]bool
	flavors         []Flavor
	images          []Image
	quotas          map[string]Quota
}

func newIndex(s Snapshot) *index {
	idx := &index{
		domains:         set(s.Domains),
		projects:        make(map[string]bool, len(s.Projects)),
		networks:        set(s.Networks),
		routers:         set(s.Routers),
		securityGroups:  set(s.SecurityGroups),
		floatingIPPools: set(s.FloatingIPPools),
		flavors:         s.Flavors,
		images:          s.Images,
		quotas:          s.Quotas,
	}
	for _, p := range s.Projects {
		idx.projects[QuotaKey(p.Domain, p.Name)] = true
	}
	return idx
}

// hasImage matches the os family against the image metadata first and the image name second.
func (idx *index) hasImage(family string) bool {
	family = strings.ToLower(family)
	for _, img := range idx.images {
		if strings.EqualFold(img.OSFamily, family) || strings.Contains(strings.ToLower(img.Name), family) {
			return true
		}
	}
	return false
}

func set(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
