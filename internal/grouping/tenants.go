package grouping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type DetectionMethod string

const (
	DetectByFolder       DetectionMethod = "folder"
	DetectByResourcePool DetectionMethod = "resource_pool"
	DetectByNaming       DetectionMethod = "naming"
	DetectManual         DetectionMethod = "manual"

	DefaultFolderDepth = 2
	// UnassignedCohort holds VMs without tenant or cohort. It is scheduled last.
	UnassignedCohort = "unassigned"
)

// Member is the view of a VM used for tenant detection.
type Member struct {
	Key          string
	Name         string
	Folder       string
	ResourcePool string
	VCPU         int
	RAMGB        float64
	DiskGB       float64
}

type DetectOptions struct {
	Method DetectionMethod
	// FolderDepth is the number of leading folder path segments naming a tenant.
	FolderDepth int
	// NamingPattern must contain one capture group yielding the tenant name.
	NamingPattern string
}

// Tenant is a detected grouping with its aggregates.
type Tenant struct {
	Name    string
	Method  DetectionMethod
	Members []string
	VMCount int
	VCPU    int
	RAMGB   float64
	DiskGB  float64
}

// DetectTenants groups members by the configured method. Members yielding an
// empty tenant name are left out. The result is sorted by tenant name and each
// member list by key.
func DetectTenants(members []Member, opts DetectOptions) ([]Tenant, error) {
	nameOf, err := tenantNamer(opts)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Tenant)
	for _, m := range members {
		name := nameOf(m)
		if name == "" {
			continue
		}
		t, ok := byName[name]
		if !ok {
			t = &Tenant{Name: name, Method: opts.Method}
			byName[name] = t
		}
		t.Members = append(t.Members, m.Key)
		t.VMCount++
		t.VCPU += m.VCPU
		t.RAMGB += m.RAMGB
		t.DiskGB += m.DiskGB
	}

	out := make([]Tenant, 0, len(byName))
	for _, t := range byName {
		sort.Strings(t.Members)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func tenantNamer(opts DetectOptions) (func(Member) string, error) {
	switch opts.Method {
	case DetectByFolder:
		depth := opts.FolderDepth
		if depth <= 0 {
			depth = DefaultFolderDepth
		}
		return func(m Member) string { return folderPrefix(m.Folder, depth) }, nil
	case DetectByResourcePool:
		return func(m Member) string { return strings.TrimSpace(m.ResourcePool) }, nil
	case DetectByNaming:
		if opts.NamingPattern == "" {
			return nil, fmt.Errorf("naming detection requires a pattern")
		}
		re, err := regexp.Compile(opts.NamingPattern)
		if err != nil {
			return nil, fmt.Errorf("bad naming pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("naming pattern %q has no capture group", opts.NamingPattern)
		}
		return func(m Member) string {
			sub := re.FindStringSubmatch(m.Name)
			if len(sub) < 2 {
				return ""
			}
			return sub[1]
		}, nil
	default:
		return nil, fmt.Errorf("unsupported detection method %q", opts.Method)
	}
}

// folderPrefix keeps the first depth non-empty segments of a slash separated path.
func folderPrefix(folder string, depth int) string {
	var segs []string
	for _, s := range strings.Split(folder, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
		if len(segs) == depth {
			break
		}
	}
	return strings.Join(segs, "/")
}

// TenantRef is a tenant as seen by cohort planning.
type TenantRef struct {
	Key      string
	Priority int
	// Cohort is the explicitly assigned cohort, empty when none.
	Cohort string
}

// CohortPlan is a cohort derived from tenant migration priorities.
type CohortPlan struct {
	Name     string
	Priority int
	Tenants  []string
}

// PriorityCohortName names the automatic cohort holding tenants of priority p.
func PriorityCohortName(p int) string {
	return fmt.Sprintf("priority-%d", p)
}

// AutoCohorts groups tenants without an explicit cohort by migration priority,
// lower priority first. Tenants inside a cohort are sorted by key.
func AutoCohorts(tenants []TenantRef) []CohortPlan {
	byPriority := make(map[int][]string)
	for _, t := range tenants {
		if t.Cohort != "" {
			continue
		}
		byPriority[t.Priority] = append(byPriority[t.Priority], t.Key)
	}

	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)

	out := make([]CohortPlan, 0, len(priorities))
	for _, p := range priorities {
		keys := byPriority[p]
		sort.Strings(keys)
		out = append(out, CohortPlan{Name: PriorityCohortName(p), Priority: p, Tenants: keys})
	}
	return out
}
