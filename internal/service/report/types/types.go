package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

type ReportRenderer interface {
	Render(data *PlanData) ([]byte, error)
	SupportedFormat() ReportFormat
	ContentType() string
}

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// PlanData is the persisted plan of one project. Waves must carry their members.
type PlanData struct {
	Project   model.Project
	Waves     model.WaveList
	VMs       model.VMList
	Gaps      model.TargetGapList
	Generated time.Time
}

// Table is one section of a report: a CSV block or a workbook sheet.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

func (d *PlanData) Tables() []Table {
	return []Table{d.SummaryTable(), d.WaveTable(), d.VMTable(), d.GapTable()}
}

func (d *PlanData) SummaryTable() Table {
	var disk, phase1, cutover float64
	excluded, failed := 0, 0
	for _, vm := range d.VMs {
		switch {
		case vm.ExcludeFromMigration:
			excluded++
			continue
		case vm.ErrorStage != "":
			failed++
		}
		disk += vm.ProvisionedGB
		phase1 += vm.Phase1Hours
		cutover += vm.CutoverHours
	}
	open := 0
	for _, g := range d.Gaps {
		if g.Status == "open" {
			open++
		}
	}
	return Table{
		Name:    "Summary",
		Headers: []string{"Metric", "Value"},
		Rows: [][]any{
			{"Project", d.Project.Name},
			{"Status", d.Project.Status},
			{"Generated", d.Generated.UTC().Format(time.RFC3339)},
			{"VMs", len(d.VMs)},
			{"Excluded VMs", excluded},
			{"Failed VMs", failed},
			{"Waves", len(d.Waves)},
			{"Provisioned disk (GB)", round(disk)},
			{"Phase 1 hours", round(phase1)},
			{"Cutover hours", round(cutover)},
			{"Open gaps", open},
		},
	}
}

func (d *PlanData) WaveTable() Table {
	t := Table{
		Name: "Waves",
		Headers: []string{
			"Sequence", "Cohort", "Index", "Status", "VMs", "Disk (GB)",
			"Phase 1 (h)", "Cutover (h)", "Total (h)", "Validation (h)",
			"Bottleneck", "Bottleneck VM", "Explanation",
		},
	}
	for _, w := range d.Waves {
		t.Rows = append(t.Rows, []any{
			w.Sequence, w.CohortKey, w.Index, w.Status, w.VMCount, round(w.DiskGB),
			round(w.Phase1Hours), round(w.CutoverHours), round(w.TotalHours), round(w.ValidationHours),
			w.Bottleneck, w.BottleneckVM, w.BottleneckExplanation,
		})
	}
	return t
}

// VMTable lists the VMs in execution order, unscheduled ones last by key.
func (d *PlanData) VMTable() Table {
	sequence := make(map[uuid.UUID]int, len(d.Waves))
	for _, w := range d.Waves {
		sequence[w.ID] = w.Sequence
	}
	vms := make(model.VMList, len(d.VMs))
	copy(vms, d.VMs)
	waveOf := func(vm model.VM) int {
		if vm.WaveID == nil {
			return 0
		}
		return sequence[*vm.WaveID]
	}
	sort.SliceStable(vms, func(i, j int) bool {
		wi, wj := waveOf(vms[i]), waveOf(vms[j])
		switch {
		case wi == 0 && wj != 0:
			return false
		case wi != 0 && wj == 0:
			return true
		case wi != wj:
			return wi < wj
		case vms[i].WaveOrder != vms[j].WaveOrder:
			return vms[i].WaveOrder < vms[j].WaveOrder
		}
		return vms[i].Key < vms[j].Key
	})

	t := Table{
		Name: "VMs",
		Headers: []string{
			"Key", "Name", "Tenant", "Cohort", "Wave", "Order", "Risk score", "Category",
			"Mode", "Mode source", "Data (GB)", "MB/s", "Bottleneck", "Phase 1 (h)",
			"Cutover (h)", "Impact", "Excluded", "Error",
		},
	}
	for _, vm := range vms {
		wave := ""
		if seq := waveOf(vm); seq > 0 {
			wave = itoa(seq)
		}
		errText := ""
		if vm.ErrorStage != "" {
			errText = vm.ErrorStage + ": " + vm.ErrorReason
		}
		t.Rows = append(t.Rows, []any{
			vm.Key, vm.Name, vm.TenantKey, vm.CohortKey, wave, vm.WaveOrder, vm.RiskScore, vm.RiskCategory,
			vm.MigrationMode, vm.ModeSource, round(vm.DataGB), round(vm.EffectiveMBps), vm.Bottleneck, round(vm.Phase1Hours),
			round(vm.CutoverHours), vm.ProductionImpact, vm.ExcludeFromMigration, errText,
		})
	}
	return t
}

func (d *PlanData) GapTable() Table {
	t := Table{
		Name:    "Gaps",
		Headers: []string{"Scope", "Type", "Resource", "Severity", "Status", "Message", "Resolved by", "Note"},
	}
	for _, g := range d.Gaps {
		t.Rows = append(t.Rows, []any{g.Scope, g.Type, g.Resource, g.Severity, g.Status, g.Message, g.ResolvedBy, g.Note})
	}
	return t
}
