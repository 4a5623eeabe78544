package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	wavePlanner = "wave_planner"

	// Pass metrics
	passesTotal     = "passes_total"
	passDuration    = "pass_duration_seconds"
	passVMsAffected = "pass_vms_affected_total"
	openGaps        = "open_gaps"

	// Labels
	passKindLabel    = "kind"
	passOutcomeLabel = "outcome"
	severityLabel    = "severity"
)

var passTotalLabels = []string{
	passKindLabel,
	passOutcomeLabel,
}

var passKindLabels = []string{
	passKindLabel,
}

var gapSeverityLabels = []string{
	severityLabel,
}

/**
* Metrics definition
**/
var passesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: wavePlanner,
		Name:      passesTotal,
		Help:      "number of planning passes partitioned by kind and outcome",
	},
	passTotalLabels,
)

var passDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: wavePlanner,
		Name:      passDuration,
		Help:      "time spent running a planning pass",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
	},
	passKindLabels,
)

var passVMsAffectedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: wavePlanner,
		Name:      passVMsAffected,
		Help:      "number of vms rewritten by committed planning passes",
	},
	passKindLabels,
)

var openGapsMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: wavePlanner,
		Name:      openGaps,
		Help:      "open readiness gaps of the last readiness pass, by severity",
	},
	gapSeverityLabels,
)

// ObservePass records the outcome of one pass: completed, failed or superseded.
func ObservePass(kind, outcome string, elapsed time.Duration, vmsAffected int) {
	passesTotalMetric.With(prometheus.Labels{
		passKindLabel:    kind,
		passOutcomeLabel: outcome,
	}).Inc()
	passDurationMetric.With(prometheus.Labels{passKindLabel: kind}).Observe(elapsed.Seconds())
	if vmsAffected > 0 {
		passVMsAffectedMetric.With(prometheus.Labels{passKindLabel: kind}).Add(float64(vmsAffected))
	}
}

func UpdateOpenGapsMetric(severity string, count int) {
	labels := prometheus.Labels{
		severityLabel: severity,
	}
	openGapsMetric.With(labels).Set(float64(count))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(passesTotalMetric)
	prometheus.MustRegister(passDurationMetric)
	prometheus.MustRegister(passVMsAffectedMetric)
	prometheus.MustRegister(openGapsMetric)
	prometheus.MustRegister(totalActiveOperatorsPerWeekMetric)
}
