package calculators

import (
	"fmt"
	"math"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

// DefaultDailyChangeRatePct is the share of a VM's data assumed rewritten per day.
const DefaultDailyChangeRatePct = 2.0

var _ estimation.Calculator = (*Cutover)(nil)

// Cutover estimates the downtime window of a VM.
// Warm migrations only transfer the delta accumulated while phase 1 ran (at least one day of change),
// cold migrations are offline for the whole transfer.
type Cutover struct {
	bufferFactor float64
}

type CutoverOption func(*Cutover)

func WithCutoverBufferFactor(f float64) CutoverOption {
	return func(c *Cutover) {
		if f >= 1 {
			c.bufferFactor = f
		}
	}
}

func NewCutover(opts ...CutoverOption) *Cutover {
	res := Cutover{bufferFactor: DefaultDiskBufferFactor}
	for _, opt := range opts {
		opt(&res)
	}
	return &res
}

func (c *Cutover) Name() string { return "Cutover" }

func (c *Cutover) Keys() []string {
	return []string{ParamMigrationMode, ParamDataGB, ParamEffectiveMBps, ParamPhase1Seconds}
}

func (c *Cutover) Calculate(params map[string]estimation.Param) (estimation.Estimation, error) {
	modeParam, ok := params[ParamMigrationMode]
	if !ok {
		return estimation.Estimation{}, fmt.Errorf("missing %s", ParamMigrationMode)
	}
	mode, err := getString(modeParam)
	if err != nil {
		return estimation.Estimation{}, err
	}

	phase1, err := requireFloat(params, ParamPhase1Seconds)
	if err != nil {
		return estimation.Estimation{}, err
	}

	switch mode {
	case "cold":
		return estimation.Estimation{
			Duration: secondsToDuration(phase1),
			Reason:   "cold migration: offline for the full transfer",
			Outputs:  []estimation.Param{{Key: ParamCutoverSeconds, Value: phase1}},
		}, nil
	case "warm":
	default:
		return estimation.Estimation{}, fmt.Errorf("unknown migration mode %q", mode)
	}

	dataGB, err := requireFloat(params, ParamDataGB)
	if err != nil {
		return estimation.Estimation{}, err
	}
	mbps, err := requireFloat(params, ParamEffectiveMBps)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if mbps <= 0 {
		return estimation.Estimation{}, &estimation.UnderflowError{Term: ParamEffectiveMBps, MBps: mbps}
	}
	rate, err := optionalFloat(params, ParamDailyChangeRatePct, DefaultDailyChangeRatePct)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if rate < 0 {
		return estimation.Estimation{}, fmt.Errorf("%s must be non-negative", ParamDailyChangeRatePct)
	}

	days := math.Max(phase1/86400, 1)
	deltaGB := math.Min(dataGB*rate/100*days, dataGB)
	seconds := transferSeconds(deltaGB, mbps, c.bufferFactor)

	return estimation.Estimation{
		Duration: secondsToDuration(seconds),
		Reason:   fmt.Sprintf("warm delta %.2f GB (%.2f%%/day over %.2f days)", deltaGB, rate, days),
		Outputs:  []estimation.Param{{Key: ParamCutoverSeconds, Value: seconds}},
	}, nil
}
