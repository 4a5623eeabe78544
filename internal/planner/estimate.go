package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/estimation"
	"github.com/kubev2v/wave-planner/internal/estimation/calculators"
	"github.com/kubev2v/wave-planner/pkg/worker"
)

// Estimate is the duration model of one VM.
type Estimate struct {
	Key           string
	Mode          classifier.Mode
	DataGB        float64
	EffectiveMBps float64
	Bottleneck    string
	Terms         []calculators.Term
	Phase1        time.Duration
	Cutover       time.Duration
	Total         time.Duration
	Impact        estimation.Impact
	// Err is set when the VM could not be estimated.
	Err error
}

// Underflow reports whether the VM failed because a throughput term derated to nothing.
func (e Estimate) Underflow() bool {
	var uf *estimation.UnderflowError
	return errors.As(e.Err, &uf)
}

// Estimator runs the per-VM calculator chain: data volume, throughput, initial copy and cutover.
type Estimator struct {
	settings    Settings
	engine      *estimation.Engine
	dataVolume  *calculators.DataVolume
	throughput  *calculators.Throughput
	initialCopy *calculators.InitialCopy
	cutover     *calculators.Cutover
	base        []estimation.Param
}

func NewEstimator(s Settings) *Estimator {
	e := &Estimator{
		settings:    s,
		engine:      estimation.NewEngine(),
		dataVolume:  calculators.NewDataVolume(calculators.WithThinProvisionFactor(s.ThinProvisionFactor)),
		throughput:  calculators.NewThroughput(),
		initialCopy: calculators.NewInitialCopy(calculators.WithBufferFactor(s.DiskBufferFactor)),
		cutover:     calculators.NewCutover(calculators.WithCutoverBufferFactor(s.DiskBufferFactor)),
		base:        s.estimationParams(),
	}
	e.engine.Register(e.dataVolume)
	e.engine.Register(e.throughput)
	e.engine.Register(e.initialCopy)
	e.engine.Register(e.cutover)
	return e
}

func (e *Estimator) EstimateVM(vm VM, mode classifier.Mode) Estimate {
	out := Estimate{Key: vm.Key, Mode: mode}

	rate := e.settings.DailyChangeRatePct
	if vm.DailyChangeRatePct > 0 {
		rate = vm.DailyChangeRatePct
	}
	params := make([]estimation.Param, 0, len(e.base)+5)
	params = append(params, e.base...)
	params = append(params,
		estimation.Param{Key: calculators.ParamProvisionedGB, Value: vm.ProvisionedGB},
		estimation.Param{Key: calculators.ParamInUseGB, Value: vm.InUseGB},
		estimation.Param{Key: calculators.ParamMigrationMode, Value: string(mode)},
		estimation.Param{Key: calculators.ParamDailyChangeRatePct, Value: rate},
	)

	results := e.engine.Run(params)
	if err := e.engine.FirstError(results); err != nil {
		out.Err = err
		return out
	}

	paramMap := make(map[string]estimation.Param, len(params))
	for _, p := range params {
		paramMap[p.Key] = p
	}
	// Terms cannot fail here: Throughput already succeeded on the same params.
	out.Terms, _ = e.throughput.Terms(paramMap)

	out.DataGB = floatOutput(results[e.dataVolume.Name()], calculators.ParamDataGB)
	tp := results[e.throughput.Name()]
	out.EffectiveMBps = floatOutput(tp, calculators.ParamEffectiveMBps)
	if p, ok := tp.Output(calculators.ParamBottleneck); ok {
		out.Bottleneck, _ = p.Value.(string)
	}

	out.Phase1 = results[e.initialCopy.Name()].Duration
	cutover := results[e.cutover.Name()].Duration
	out.Cutover = cutover
	if mode == classifier.ModeCold {
		// Cold VMs are offline for the one full transfer.
		out.Total = out.Phase1
	} else {
		out.Total = out.Phase1 + cutover
	}
	out.Impact = estimation.ClassifyImpact(cutover, e.settings.ImpactThresholds())
	return out
}

func floatOutput(est estimation.Estimation, key string) float64 {
	p, ok := est.Output(key)
	if !ok {
		return 0
	}
	v, _ := p.Value.(float64)
	return v
}

// EstimateAll estimates every VM on the pool with the mode found in modes,
// warm when missing. Results keep the input order.
func EstimateAll(ctx context.Context, pool *worker.Pool, e *Estimator, vms []VM, modes map[string]classifier.Mode) ([]Estimate, error) {
	return worker.Map(ctx, pool, len(vms), func(_ context.Context, i int) Estimate {
		mode, ok := modes[vms[i].Key]
		if !ok {
			mode = classifier.ModeWarm
		}
		return e.EstimateVM(vms[i], mode)
	})
}

// UnderflowReason is the failure reason recorded for a VM whose throughput derated to nothing.
func UnderflowReason(err error) string {
	return fmt.Sprintf("capacity underflow: %v", err)
}
