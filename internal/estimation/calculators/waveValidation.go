package calculators

import (
	"fmt"
	"time"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

const (
	// ParamWaveVMCount is the number of VMs landing in the wave.
	ParamWaveVMCount = "wave_vm_count"
	// ParamValidationMinsPerVM overrides the check time of one VM.
	ParamValidationMinsPerVM = "validation_mins_per_vm"
	// ParamValidationEngineers overrides the number of engineers checking the wave.
	ParamValidationEngineers = "validation_engineers"
	// ParamValidationHours is published with the wall-clock validation time of the wave.
	ParamValidationHours = "validation_hours"

	DefaultValidationMinsPerVM = 30.0
	DefaultValidationEngineers = 4
)

var _ estimation.Calculator = (*WaveValidation)(nil)

// WaveValidation estimates the validating phase of a wave: every landed VM is
// checked by one engineer, engineers work in parallel and an engineer never
// shares a VM, so a wave smaller than the team is bounded by one VM's check time.
type WaveValidation struct {
	minsPerVM float64
	engineers int
}

type WaveValidationOption func(*WaveValidation)

func WithValidationMinsPerVM(mins float64) WaveValidationOption {
	return func(c *WaveValidation) {
		c.minsPerVM = mins
	}
}

func WithValidationEngineers(n int) WaveValidationOption {
	return func(c *WaveValidation) {
		c.engineers = n
	}
}

func NewWaveValidation(opts ...WaveValidationOption) *WaveValidation {
	res := WaveValidation{
		minsPerVM: DefaultValidationMinsPerVM,
		engineers: DefaultValidationEngineers,
	}
	for _, opt := range opts {
		opt(&res)
	}
	return &res
}

func (c *WaveValidation) Name() string { return "Wave Validation" }

func (c *WaveValidation) Keys() []string {
	return []string{ParamWaveVMCount}
}

func (c *WaveValidation) Calculate(params map[string]estimation.Param) (estimation.Estimation, error) {
	vms, err := requireInt(params, ParamWaveVMCount)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if vms < 0 {
		return estimation.Estimation{}, fmt.Errorf("%s must be non-negative", ParamWaveVMCount)
	}
	mins, err := optionalFloat(params, ParamValidationMinsPerVM, c.minsPerVM)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if mins < 0 {
		return estimation.Estimation{}, fmt.Errorf("%s must be non-negative", ParamValidationMinsPerVM)
	}
	engineers := c.engineers
	if p, ok := params[ParamValidationEngineers]; ok {
		if engineers, err = getInt(p); err != nil {
			return estimation.Estimation{}, err
		}
	}
	if engineers <= 0 {
		return estimation.Estimation{}, fmt.Errorf("%s must be positive", ParamValidationEngineers)
	}

	busy := min(engineers, vms)
	if busy == 0 {
		return estimation.Estimation{
			Reason:  "empty wave",
			Outputs: []estimation.Param{{Key: ParamValidationHours, Value: 0.0}},
		}, nil
	}
	elapsedMins := float64(vms) * mins / float64(busy)
	return estimation.Estimation{
		Duration: time.Duration(elapsedMins * float64(time.Minute)),
		Reason:   fmt.Sprintf("%d VMs x %.1f min over %d engineers", vms, mins, busy),
		Outputs:  []estimation.Param{{Key: ParamValidationHours, Value: elapsedMins / 60}},
	}, nil
}
