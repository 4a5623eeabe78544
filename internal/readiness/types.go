// Package readiness compares what tenants need at the destination cloud with a
// snapshot of what the destination offers and reports the difference as gaps.
//
// Checks are plain data: every gap type has a check function and a severity taken
// from Rules, so a new gap type is one more entry in the table. Output is sorted,
// running Check twice on the same input returns the same gaps in the same order.
package readiness

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

type GapType string

const (
	GapMissingDomain         GapType = "missing_domain"
	GapMissingProject        GapType = "missing_project"
	GapMissingNetworkMapping GapType = "missing_network_mapping"
	GapMissingNetwork        GapType = "missing_network"
	GapMissingFlavor         GapType = "missing_flavor"
	GapMissingImage          GapType = "missing_image"
	GapMissingRouter         GapType = "missing_router"
	GapMissingSecurityGroup  GapType = "missing_security_group"
	GapMissingFloatingIPPool GapType = "missing_floating_ip_pool"
	GapQuotaShortfall        GapType = "quota_shortfall"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusResolved   Status = "resolved"
	StatusOverridden Status = "overridden"
)

type Flavor struct {
	Name   string `json:"name,omitempty"`
	VCPU   int    `json:"vcpu,omitempty"`
	RAMMB  int    `json:"ram_mb,omitempty"`
	DiskGB int    `json:"disk_gb,omitempty"`
}

type Image struct {
	Name     string `json:"name,omitempty"`
	OSFamily string `json:"os_family,omitempty"`
}

type Project struct {
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Quota holds compute limits and usage of one destination project. A negative
// limit means unlimited.
type Quota struct {
	CoresLimit     int `json:"cores_limit,omitempty"`
	CoresUsed      int `json:"cores_used,omitempty"`
	RAMMBLimit     int `json:"ram_mb_limit,omitempty"`
	RAMMBUsed      int `json:"ram_mb_used,omitempty"`
	InstancesLimit int `json:"instances_limit,omitempty"`
	InstancesUsed  int `json:"instances_used,omitempty"`
}

// Snapshot is the destination inventory. Quotas are keyed by QuotaKey(domain, project).
type Snapshot struct {
	Domains         []string         `json:"domains,omitempty"`
	Projects        []Project        `json:"projects,omitempty"`
	Networks        []string         `json:"networks,omitempty"`
	Routers         []string         `json:"routers,omitempty"`
	SecurityGroups  []string         `json:"security_groups,omitempty"`
	Flavors         []Flavor         `json:"flavors,omitempty"`
	Images          []Image          `json:"images,omitempty"`
	FloatingIPPools []string         `json:"floating_ip_pools,omitempty"`
	Quotas          map[string]Quota `json:"quotas,omitempty"`
}

func QuotaKey(domain, project string) string {
	return domain + "/" + project
}

type NetworkMapping struct {
	Source string
	// Target is empty when the source network has no mapping yet.
	Target string
}

// Shape is the smallest flavor a VM fits in.
type Shape struct {
	VCPU   int
	RAMMB  int
	DiskGB int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dvcpu-%dmb-%dgb", s.VCPU, s.RAMMB, s.DiskGB)
}

// Requirement is what one tenant needs at the destination.
type Requirement struct {
	// Scope is the tenant key gaps are attached to.
	Scope    string
	Domain   string
	Project  string
	Networks []NetworkMapping
	Shapes   []Shape
	// OSFamilies lists the guest OS families an image must exist for.
	OSFamilies     []string
	Router         string
	SecurityGroup  string
	FloatingIPPool string
	VCPU           int
	RAMMB          int
	Instances      int
	// CPUOvercommit and RAMOvercommit divide the source allocation before the quota check.
	CPUOvercommit float64
	RAMOvercommit float64
}

type Gap struct {
	Scope    string
	Type     GapType
	Resource string
	Severity Severity
	Message  string
}

// Key identifies a gap across re-runs.
func (g Gap) Key() string {
	return strings.Join([]string{g.Scope, string(g.Type), g.Resource}, "|")
}

// Record is a gap together with its resolution state.
type Record struct {
	Gap
	Status Status
	// AutoResolved is set when the gap disappeared from the destination on re-check.
	AutoResolved bool
}
