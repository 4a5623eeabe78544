package estimation

import "time"

type Impact string

const (
	ImpactLow    Impact = "LOW"
	ImpactMedium Impact = "MEDIUM"
	ImpactHigh   Impact = "HIGH"

	DefaultImpactLowHours    = 1.0
	DefaultImpactMediumHours = 4.0
)

// ImpactThresholds are exclusive upper bounds on cutover hours.
type ImpactThresholds struct {
	LowHours    float64
	MediumHours float64
}

func DefaultImpactThresholds() ImpactThresholds {
	return ImpactThresholds{LowHours: DefaultImpactLowHours, MediumHours: DefaultImpactMediumHours}
}

// ClassifyImpact derives the production impact of a VM from its cutover (downtime) duration.
func ClassifyImpact(cutover time.Duration, th ImpactThresholds) Impact {
	if th.LowHours <= 0 {
		th.LowHours = DefaultImpactLowHours
	}
	if th.MediumHours < th.LowHours {
		th.MediumHours = DefaultImpactMediumHours
	}
	hours := cutover.Hours()
	switch {
	case hours < th.LowHours:
		return ImpactLow
	case hours < th.MediumHours:
		return ImpactMedium
	default:
		return ImpactHigh
	}
}
