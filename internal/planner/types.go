// Package planner runs the planning passes (classify, estimate, group, schedule,
// readiness) over rows already loaded in memory. It holds no state and never
// touches the store: the service feeds it rows and persists what it returns,
// and the offline CLI runs the whole chain on an inventory file.
package planner

import (
	"strings"

	"github.com/kubev2v/wave-planner/internal/classifier"
)

// VM is one inventory row plus the operator overrides.
type VM struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	GuestOS       string   `json:"guest_os"`
	OSFamily      string   `json:"os_family,omitempty"`
	PowerState    string   `json:"power_state,omitempty"`
	VCPU          int      `json:"vcpu"`
	RAMGB         float64  `json:"ram_gb"`
	ProvisionedGB float64  `json:"provisioned_gb"`
	InUseGB       float64  `json:"in_use_gb,omitempty"`
	DiskCount     int      `json:"disk_count,omitempty"`
	NICCount      int      `json:"nic_count,omitempty"`
	SnapshotCount int      `json:"snapshot_count,omitempty"`
	SnapshotDepth int      `json:"snapshot_depth,omitempty"`
	Flags         []string `json:"flags,omitempty"`
	Networks      []string `json:"networks,omitempty"`
	Folder        string   `json:"folder,omitempty"`
	ResourcePool  string   `json:"resource_pool,omitempty"`
	Host          string   `json:"host,omitempty"`
	Cluster       string   `json:"cluster,omitempty"`
	// DailyChangeRatePct overrides the project change rate when positive.
	DailyChangeRatePct float64 `json:"daily_change_rate_pct,omitempty"`
	Tenant             string  `json:"tenant,omitempty"`

	Exclude      bool             `json:"exclude,omitempty"`
	ManualMode   *classifier.Mode `json:"manual_mode,omitempty"`
	Priority     int              `json:"priority,omitempty"`
	PinnedWave   int              `json:"pinned_wave,omitempty"`
	PinnedCohort string           `json:"pinned_cohort,omitempty"`
}

func (v VM) classifierVM() classifier.VM {
	return classifier.VM{
		Name:          v.Name,
		GuestOS:       v.GuestOS,
		PowerState:    v.PowerState,
		VCPU:          v.VCPU,
		RAMGB:         v.RAMGB,
		ProvisionedGB: v.ProvisionedGB,
		InUseGB:       v.InUseGB,
		DiskCount:     v.DiskCount,
		NICCount:      v.NICCount,
		SnapshotCount: v.SnapshotCount,
		SnapshotDepth: v.SnapshotDepth,
		Flags:         v.Flags,
		ManualMode:    v.ManualMode,
	}
}

// Family returns the OS family used to look up destination images.
func (v VM) Family() string {
	if v.OSFamily != "" {
		return strings.ToLower(v.OSFamily)
	}
	return OSFamily(v.GuestOS)
}

var osFamilies = []struct {
	needle string
	family string
}{
	{"windows", "windows"},
	{"red hat", "rhel"},
	{"rhel", "rhel"},
	{"centos", "centos"},
	{"rocky", "rocky"},
	{"alma", "almalinux"},
	{"oracle linux", "oraclelinux"},
	{"ubuntu", "ubuntu"},
	{"debian", "debian"},
	{"suse", "sles"},
	{"sles", "sles"},
	{"fedora", "fedora"},
	{"freebsd", "freebsd"},
}

// OSFamily maps a free form guest OS name to a family, "other" when unknown.
func OSFamily(guestOS string) string {
	s := strings.ToLower(guestOS)
	if s == "" {
		return ""
	}
	for _, f := range osFamilies {
		if strings.Contains(s, f.needle) {
			return f.family
		}
	}
	return "other"
}

type Tenant struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Priority int    `json:"priority,omitempty"`
	// Cohort is the explicitly assigned cohort key, empty for automatic cohorting.
	Cohort         string `json:"cohort,omitempty"`
	Domain         string `json:"target_domain,omitempty"`
	Project        string `json:"target_project,omitempty"`
	Router         string `json:"router,omitempty"`
	SecurityGroup  string `json:"security_group,omitempty"`
	FloatingIPPool string `json:"floating_ip_pool,omitempty"`
}

type Cohort struct {
	Key   string `json:"key"`
	Order int    `json:"order"`
	// ConcurrencyCeiling overrides the project agent concurrency when positive.
	ConcurrencyCeiling int  `json:"concurrency_ceiling,omitempty"`
	Auto               bool `json:"auto,omitempty"`
}

// NetworkMapping maps a source network to a destination network. An empty
// Tenant applies the mapping to every tenant.
type NetworkMapping struct {
	Tenant string `json:"tenant,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Stage string

const (
	StageClassify Stage = "classify"
	StageEstimate Stage = "estimate"
	StageGroup    Stage = "group"
)

// Failure records why a VM was left out of scheduling.
type Failure struct {
	Key    string `json:"key"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}
