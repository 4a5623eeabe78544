package planner

import (
	"fmt"
	"math"

	"github.com/kubev2v/wave-planner/internal/estimation"
	"github.com/kubev2v/wave-planner/internal/estimation/calculators"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/scheduling"
)

// Settings are the project level capacity and schedule figures.
// Speeds are in Mbit/s, usable shares in percent and storage write in MB/s.
type Settings struct {
	Topology estimation.Topology `json:"topology"`

	SourceNICMbps      float64 `json:"source_nic_mbps"`
	SourceNICUsablePct float64 `json:"source_nic_usable_pct"`
	LinkMbps           float64 `json:"link_mbps"`
	LinkUsablePct      float64 `json:"link_usable_pct"`

	AgentCount int `json:"agent_count"`
	AgentSlots int `json:"agent_slots"`
	// AgentVCPUPerSlot and AgentRAMGBPerSlot are the agent cost of one concurrent VM.
	AgentVCPUPerSlot    int     `json:"agent_vcpu_per_slot"`
	AgentRAMGBPerSlot   float64 `json:"agent_ram_gb_per_slot"`
	AgentNICMbps        float64 `json:"agent_nic_mbps"`
	AgentNICUsablePct   float64 `json:"agent_nic_usable_pct"`
	AgentThroughputMBps float64 `json:"agent_throughput_mbps,omitempty"`

	StorageWriteMBps      float64 `json:"storage_write_mbps"`
	StorageWriteUsablePct float64 `json:"storage_write_usable_pct"`

	DiskBufferFactor    float64 `json:"disk_buffer_factor"`
	ThinProvisionFactor float64 `json:"thin_provision_factor"`
	DailyChangeRatePct  float64 `json:"daily_change_rate_pct"`
	ImpactLowHours      float64 `json:"impact_low_hours"`
	ImpactMediumHours   float64 `json:"impact_medium_hours"`

	DurationDays       int     `json:"duration_days"`
	WorkingHoursPerDay float64 `json:"working_hours_per_day"`
	WorkingDaysPerWeek int     `json:"working_days_per_week"`
	TargetVMsPerDay    int     `json:"target_vms_per_day,omitempty"`

	CPUOvercommit float64 `json:"cpu_overcommit"`
	RAMOvercommit float64 `json:"ram_overcommit"`

	TenantDetection grouping.DetectionMethod `json:"tenant_detection,omitempty"`
	FolderDepth     int                      `json:"folder_depth,omitempty"`
	NamingPattern   string                   `json:"naming_pattern,omitempty"`

	ValidationMinsPerVM float64 `json:"validation_mins_per_vm"`
	ValidationEngineers int     `json:"validation_engineers"`

	// GapRules overrides the readiness severities, nil for the defaults.
	GapRules readiness.Rules `json:"gap_rules,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Topology:              estimation.TopologyLocal,
		SourceNICMbps:         10000,
		SourceNICUsablePct:    40,
		LinkMbps:              10000,
		LinkUsablePct:         40,
		AgentCount:            calculators.DefaultAgentCount,
		AgentSlots:            calculators.DefaultAgentSlots,
		AgentVCPUPerSlot:      1,
		AgentRAMGBPerSlot:     1,
		AgentNICMbps:          10000,
		AgentNICUsablePct:     70,
		StorageWriteMBps:      500,
		StorageWriteUsablePct: 100,
		DiskBufferFactor:      calculators.DefaultDiskBufferFactor,
		ThinProvisionFactor:   calculators.DefaultThinProvisionFactor,
		DailyChangeRatePct:    calculators.DefaultDailyChangeRatePct,
		ImpactLowHours:        estimation.DefaultImpactLowHours,
		ImpactMediumHours:     estimation.DefaultImpactMediumHours,
		DurationDays:          90,
		WorkingHoursPerDay:    scheduling.DefaultWorkingHoursPerDay,
		WorkingDaysPerWeek:    scheduling.DefaultWorkingDaysPerWeek,
		CPUOvercommit:         1,
		RAMOvercommit:         1,
		ValidationMinsPerVM:   calculators.DefaultValidationMinsPerVM,
		ValidationEngineers:   calculators.DefaultValidationEngineers,
	}
}

func (s Settings) Validate() error {
	if !s.Topology.Valid() {
		return fmt.Errorf("unknown topology %q", s.Topology)
	}
	if s.AgentCount <= 0 || s.AgentSlots <= 0 {
		return fmt.Errorf("agent count and slots must be positive")
	}
	for name, pct := range map[string]float64{
		"source_nic_usable_pct":    s.SourceNICUsablePct,
		"link_usable_pct":          s.LinkUsablePct,
		"agent_nic_usable_pct":     s.AgentNICUsablePct,
		"storage_write_usable_pct": s.StorageWriteUsablePct,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s must be within [0, 100], got %v", name, pct)
		}
	}
	if s.DurationDays < 0 || s.TargetVMsPerDay < 0 {
		return fmt.Errorf("duration and target vms per day must be non-negative")
	}
	if s.WorkingDaysPerWeek < 0 || s.WorkingDaysPerWeek > 7 {
		return fmt.Errorf("working days per week must be within [0, 7]")
	}
	if s.WorkingHoursPerDay < 0 || s.WorkingHoursPerDay > 24 {
		return fmt.Errorf("working hours per day must be within [0, 24]")
	}
	if s.ValidationMinsPerVM < 0 || s.ValidationEngineers < 0 {
		return fmt.Errorf("validation minutes per vm and engineers must be non-negative")
	}
	if err := s.GapRules.Validate(); err != nil {
		return fmt.Errorf("gap rules: %w", err)
	}
	return nil
}

// ConcurrencyCeiling is the number of VMs the agents migrate at once.
func (s Settings) ConcurrencyCeiling() int {
	return s.AgentCount * s.AgentSlots
}

func (s Settings) ScheduleParams() scheduling.Params {
	return scheduling.Params{
		DurationDays:       s.DurationDays,
		WorkingHoursPerDay: s.WorkingHoursPerDay,
		WorkingDaysPerWeek: s.WorkingDaysPerWeek,
		TargetVMsPerDay:    s.TargetVMsPerDay,
		ConcurrencyCeiling: s.ConcurrencyCeiling(),
	}
}

func (s Settings) ImpactThresholds() estimation.ImpactThresholds {
	return estimation.ImpactThresholds{LowHours: s.ImpactLowHours, MediumHours: s.ImpactMediumHours}
}

// DetectOptions returns nil when tenant detection is off.
func (s Settings) DetectOptions() *grouping.DetectOptions {
	if s.TenantDetection == "" || s.TenantDetection == grouping.DetectManual {
		return nil
	}
	return &grouping.DetectOptions{Method: s.TenantDetection, FolderDepth: s.FolderDepth, NamingPattern: s.NamingPattern}
}

// estimationParams are the project level inputs shared by every VM.
func (s Settings) estimationParams() []estimation.Param {
	params := []estimation.Param{
		{Key: calculators.ParamTopology, Value: string(s.Topology)},
		{Key: calculators.ParamSourceNICMbps, Value: s.SourceNICMbps},
		{Key: calculators.ParamSourceNICUsablePct, Value: s.SourceNICUsablePct},
		{Key: calculators.ParamLinkMbps, Value: s.LinkMbps},
		{Key: calculators.ParamLinkUsablePct, Value: s.LinkUsablePct},
		{Key: calculators.ParamAgentCount, Value: s.AgentCount},
		{Key: calculators.ParamAgentSlots, Value: s.AgentSlots},
		{Key: calculators.ParamAgentNICMbps, Value: s.AgentNICMbps},
		{Key: calculators.ParamAgentNICUsablePct, Value: s.AgentNICUsablePct},
		{Key: calculators.ParamStorageWriteMBps, Value: s.StorageWriteMBps},
		{Key: calculators.ParamStorageWriteUsablePct, Value: s.StorageWriteUsablePct},
	}
	if s.AgentThroughputMBps > 0 {
		params = append(params, estimation.Param{Key: calculators.ParamAgentThroughputMBps, Value: s.AgentThroughputMBps})
	}
	return params
}

// ValidationHours is the post cutover validation effort of a wave of vms, spread over the engineers.
func (s Settings) ValidationHours(vms int) float64 {
	calc := calculators.NewWaveValidation(
		calculators.WithValidationMinsPerVM(s.ValidationMinsPerVM),
		calculators.WithValidationEngineers(max(s.ValidationEngineers, 1)),
	)
	est, err := calc.Calculate(map[string]estimation.Param{
		calculators.ParamWaveVMCount: {Key: calculators.ParamWaveVMCount, Value: vms},
	})
	if err != nil {
		return 0
	}
	h, ok := est.Output(calculators.ParamValidationHours)
	if !ok {
		return 0
	}
	return math.Round(h.Value.(float64)*100) / 100
}
