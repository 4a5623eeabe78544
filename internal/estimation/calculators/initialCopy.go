package calculators

import (
	"fmt"
	"time"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

const (
	// DefaultDiskBufferFactor is the safety factor applied to every transfer duration.
	DefaultDiskBufferFactor = 1.2
	mbPerGB                 = 1024.0
)

// Compile-time assertion that InitialCopy implements the Calculator interface.
var _ estimation.Calculator = (*InitialCopy)(nil)

// InitialCopy estimates phase 1: the full copy of a VM's data at its effective throughput.
type InitialCopy struct {
	bufferFactor float64
}

// InitialCopyOption is a functional option for configuring an InitialCopy calculator.
type InitialCopyOption func(*InitialCopy)

// WithBufferFactor sets the multiplicative safety factor applied to the transfer time.
// Values below 1 are ignored and the default is kept.
func WithBufferFactor(f float64) InitialCopyOption {
	return func(c *InitialCopy) {
		if f >= 1 {
			c.bufferFactor = f
		}
	}
}

// NewInitialCopy creates an InitialCopy calculator with default settings.
func NewInitialCopy(opts ...InitialCopyOption) *InitialCopy {
	res := InitialCopy{
		bufferFactor: DefaultDiskBufferFactor,
	}

	for _, opt := range opts {
		opt(&res)
	}

	return &res
}

// Name returns the human-readable name of this calculator.
func (c *InitialCopy) Name() string {
	return "Initial Copy"
}

// Keys returns the list of parameter keys required by this calculator.
func (c *InitialCopy) Keys() []string {
	return []string{ParamDataGB, ParamEffectiveMBps}
}

// Calculate returns data_gb x 1024 / effective_mbps seconds, scaled by the buffer factor.
func (c *InitialCopy) Calculate(params map[string]estimation.Param) (estimation.Estimation, error) {
	dataGB, err := requireFloat(params, ParamDataGB)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if dataGB < 0 {
		return estimation.Estimation{}, fmt.Errorf("%s must be non-negative", ParamDataGB)
	}

	mbps, err := requireFloat(params, ParamEffectiveMBps)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if mbps <= 0 {
		return estimation.Estimation{}, &estimation.UnderflowError{Term: ParamEffectiveMBps, MBps: mbps}
	}

	seconds := transferSeconds(dataGB, mbps, c.bufferFactor)

	return estimation.Estimation{
		Duration: secondsToDuration(seconds),
		Reason:   fmt.Sprintf("%.2f GB at %.1f MB/s x %.2f buffer", dataGB, mbps, c.bufferFactor),
		Outputs:  []estimation.Param{{Key: ParamPhase1Seconds, Value: seconds}},
	}, nil
}

func transferSeconds(gb, mbps, buffer float64) float64 {
	return gb * mbPerGB / mbps * buffer
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
