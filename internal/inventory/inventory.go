// Package inventory reads source inventory files: VMs, tenants, dependencies
// and network mappings, optionally bundled with project settings, a risk
// configuration and a destination snapshot for offline planning.
package inventory

import (
	"errors"
	"fmt"
	"os"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/rvtools"
	"sigs.k8s.io/yaml"
)

type Dependency struct {
	VM        string `json:"vm"`
	DependsOn string `json:"depends_on"`
}

type Inventory struct {
	VMs             []planner.VM             `json:"vms"`
	Tenants         []planner.Tenant         `json:"tenants,omitempty"`
	Dependencies    []Dependency             `json:"dependencies,omitempty"`
	NetworkMappings []planner.NetworkMapping `json:"network_mappings,omitempty"`
}

// Validate checks the inventory on its own. References to VMs outside the
// inventory are left to the caller, which knows what is already stored.
func (i Inventory) Validate() error {
	var errs []error

	vms := make(map[string]bool, len(i.VMs))
	for n, vm := range i.VMs {
		if vm.Key == "" {
			errs = append(errs, fmt.Errorf("vm #%d: key is empty", n))
			continue
		}
		if vms[vm.Key] {
			errs = append(errs, fmt.Errorf("vm %q: duplicate key", vm.Key))
		}
		vms[vm.Key] = true
		if vm.VCPU < 0 || vm.RAMGB < 0 || vm.ProvisionedGB < 0 || vm.InUseGB < 0 {
			errs = append(errs, fmt.Errorf("vm %q: sizes must be non-negative", vm.Key))
		}
		if vm.DailyChangeRatePct < 0 || vm.DailyChangeRatePct > 100 {
			errs = append(errs, fmt.Errorf("vm %q: daily change rate must be within [0, 100]", vm.Key))
		}
		if vm.ManualMode != nil {
			if _, err := classifier.ParseMode(string(*vm.ManualMode)); err != nil {
				errs = append(errs, fmt.Errorf("vm %q: %w", vm.Key, err))
			}
		}
	}

	tenants := make(map[string]bool, len(i.Tenants))
	for n, t := range i.Tenants {
		if t.Key == "" {
			errs = append(errs, fmt.Errorf("tenant #%d: key is empty", n))
			continue
		}
		if tenants[t.Key] {
			errs = append(errs, fmt.Errorf("tenant %q: duplicate key", t.Key))
		}
		tenants[t.Key] = true
	}

	for _, d := range i.Dependencies {
		switch {
		case d.VM == "" || d.DependsOn == "":
			errs = append(errs, fmt.Errorf("dependency %q -> %q: both ends are required", d.VM, d.DependsOn))
		case d.VM == d.DependsOn:
			errs = append(errs, fmt.Errorf("dependency %q: a vm cannot depend on itself", d.VM))
		}
	}

	for _, m := range i.NetworkMappings {
		if m.Source == "" || m.Target == "" {
			errs = append(errs, fmt.Errorf("network mapping %q -> %q: source and target are required", m.Source, m.Target))
		}
	}
	return errors.Join(errs...)
}

func (i Inventory) Edges() []grouping.Edge {
	edges := make([]grouping.Edge, 0, len(i.Dependencies))
	for _, d := range i.Dependencies {
		edges = append(edges, grouping.Edge{VM: d.VM, DependsOn: d.DependsOn})
	}
	return edges
}

// File is the on-disk document. Settings start from planner.DefaultSettings and
// the file only overrides what it names. A nil RiskConfig means the defaults.
type File struct {
	Name        string              `json:"name,omitempty"`
	Settings    planner.Settings    `json:"settings"`
	RiskConfig  *classifier.Config  `json:"risk_config,omitempty"`
	Destination *readiness.Snapshot `json:"destination,omitempty"`
	Inventory
}

// Risk returns the risk configuration of the file, the defaults when unset.
func (f File) Risk() classifier.Config {
	if f.RiskConfig != nil {
		return *f.RiskConfig
	}
	return classifier.DefaultConfig()
}

// Parse reads a YAML or JSON document, or an RVTools export which only
// carries VMs. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{Settings: planner.DefaultSettings()}
	if rvtools.IsExcelFile(data) {
		vms, err := rvtools.ParseVMs(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rvtools export: %w", err)
		}
		f.VMs = vms
	} else if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}
	if err := f.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return f, nil
}

// ParseInventory reads a bare inventory document, without settings or rules,
// or an RVTools export.
func ParseInventory(data []byte) (*Inventory, error) {
	inv := &Inventory{}
	if rvtools.IsExcelFile(data) {
		vms, err := rvtools.ParseVMs(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rvtools export: %w", err)
		}
		inv.VMs = vms
	} else if err := yaml.UnmarshalStrict(data, inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inventory: %w", err)
	}
	return inv, nil
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}
