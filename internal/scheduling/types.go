// Package scheduling assigns VMs to ordered waves inside ordered cohorts.
//
// The scheduler is a list scheduler: VMs are walked in a dependency respecting order,
// ties broken by ascending priority, risk score, name and key, and each wave is filled
// until its VM budget is reached. A VM is only ready for a wave once every VM it depends on
// sits in an earlier wave. The output only depends on the input, never on map iteration
// or wall-clock time.
package scheduling

import "fmt"

// Item is one schedulable VM.
type Item struct {
	Key           string
	Name          string
	Priority      int
	RiskScore     int
	DiskGB        float64
	Phase1Hours   float64
	CutoverHours  float64
	TotalHours    float64
	EffectiveMBps float64
	Bottleneck    string
	DependsOn     []string
	// PinnedWave is the 1-based wave index the operator pinned this VM to, 0 when not pinned.
	PinnedWave int
}

// FrozenWave is a wave whose membership must not change (executing or finished).
type FrozenWave struct {
	Index   int
	Members []string
}

type Cohort struct {
	Key   string
	Order int
	// ConcurrencyCeiling overrides the project ceiling when positive.
	ConcurrencyCeiling int
	Items              []Item
	Frozen             []FrozenWave
}

type Params struct {
	DurationDays       int
	WorkingHoursPerDay float64
	WorkingDaysPerWeek int
	// TargetVMsPerDay is the operator supplied pacing, 0 to derive it.
	TargetVMsPerDay int
	// ConcurrencyCeiling is the number of VMs the agents run at once.
	ConcurrencyCeiling int
}

type Wave struct {
	CohortKey string
	// Index is 1-based within the cohort, Sequence is 1-based across the project.
	Index    int
	Sequence int
	Members  []string
	Frozen   bool

	VMCount      int
	DiskGB       float64
	Phase1Hours  float64
	CutoverHours float64
	TotalHours   float64

	Bottleneck            string
	BottleneckVM          string
	BottleneckExplanation string
}

// Position locates a VM in the plan.
type Position struct {
	CohortKey string
	WaveIndex int
	Sequence  int
	Order     int
}

type Plan struct {
	VMsPerDay   int
	WorkingDays int
	// CapacityVMs is how many VMs the schedule window can absorb at VMsPerDay.
	CapacityVMs int
	TotalVMs    int
	Waves       []Wave
	Positions   map[string]Position
}

// Overbooked reports whether the plan needs more working days than the project window.
func (p *Plan) Overbooked() bool {
	return p.TotalVMs > p.CapacityVMs
}

// OverconstrainedError reports a dependency the wave ordering cannot satisfy.
type OverconstrainedError struct {
	VM        string
	DependsOn string
	Reason    string
}

func (e *OverconstrainedError) Error() string {
	return fmt.Sprintf("cannot schedule %s after %s: %s", e.VM, e.DependsOn, e.Reason)
}
