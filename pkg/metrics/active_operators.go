package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type activeOperators struct {
	counter       prometheus.Gauge
	operatorCache map[string]struct{}
	mu            sync.RWMutex
}

// Operators
const activeOperatorsPerWeek = "active_operators_per_week"

var totalActiveOperatorsPerWeekMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: wavePlanner,
		Name:      activeOperatorsPerWeek,
		Help:      "metrics to record the number of distinct operators calling the api per week",
	},
)

var ActiveOperatorsPerWeek = &activeOperators{
	counter:       totalActiveOperatorsPerWeekMetric,
	operatorCache: make(map[string]struct{}),
}

func (v *activeOperators) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.operatorCache = make(map[string]struct{})
	v.counter.Set(0)
}

func (v *activeOperators) Observe(operator string) {
	if operator == "" {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.operatorCache[operator]; exists {
		return
	}

	v.operatorCache[operator] = struct{}{}
	v.counter.Inc()
}
