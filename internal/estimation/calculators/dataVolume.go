package calculators

import (
	"fmt"

	"github.com/kubev2v/wave-planner/internal/estimation"
)

// DefaultThinProvisionFactor assumes thin disks are fully written when their usage is unknown.
const DefaultThinProvisionFactor = 1.0

var _ estimation.Calculator = (*DataVolume)(nil)

// DataVolume decides how many gigabytes of a VM must cross the wire.
// The in-use size is preferred; otherwise the provisioned size is scaled by the thin-provision factor.
type DataVolume struct {
	thinFactor float64
}

type DataVolumeOption func(*DataVolume)

// WithThinProvisionFactor sets the fraction of provisioned space assumed written when in-use size is unknown.
// Values outside (0, 1] are ignored.
func WithThinProvisionFactor(f float64) DataVolumeOption {
	return func(d *DataVolume) {
		if f > 0 && f <= 1 {
			d.thinFactor = f
		}
	}
}

func NewDataVolume(opts ...DataVolumeOption) *DataVolume {
	res := DataVolume{thinFactor: DefaultThinProvisionFactor}
	for _, opt := range opts {
		opt(&res)
	}
	return &res
}

func (c *DataVolume) Name() string { return "Data Volume" }

func (c *DataVolume) Keys() []string {
	return []string{ParamProvisionedGB, ParamInUseGB}
}

func (c *DataVolume) Calculate(params map[string]estimation.Param) (estimation.Estimation, error) {
	provisioned, err := optionalFloat(params, ParamProvisionedGB, 0)
	if err != nil {
		return estimation.Estimation{}, err
	}
	inUse, err := optionalFloat(params, ParamInUseGB, 0)
	if err != nil {
		return estimation.Estimation{}, err
	}
	if provisioned < 0 || inUse < 0 {
		return estimation.Estimation{}, fmt.Errorf("disk sizes must be non-negative")
	}

	var dataGB float64
	var reason string
	switch {
	case inUse > 0:
		dataGB = inUse
		reason = fmt.Sprintf("%.2f GB in use", inUse)
	case provisioned > 0:
		dataGB = provisioned * c.thinFactor
		reason = fmt.Sprintf("%.2f GB provisioned x %.2f thin factor", provisioned, c.thinFactor)
	default:
		return estimation.Estimation{}, fmt.Errorf("no disk data: %s and %s are both zero", ParamInUseGB, ParamProvisionedGB)
	}

	return estimation.Estimation{
		Reason:  reason,
		Outputs: []estimation.Param{{Key: ParamDataGB, Value: dataGB}},
	}, nil
}
