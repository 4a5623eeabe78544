package metrics

import (
	"context"
	"fmt"

	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StatsProvider is the part of the store the collector reads.
type StatsProvider interface {
	Statistics(ctx context.Context) (model.PlannerStats, error)
}

type plannerStatsCollector struct {
	store              StatsProvider
	projectsByStatus   *prometheus.Desc
	vmsByCategory      *prometheus.Desc
	wavesByStatus      *prometheus.Desc
	openGapsBySeverity *prometheus.Desc
}

func NewPlannerStatsCollector(s StatsProvider) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_store_%s", wavePlanner, name)
	}

	return &plannerStatsCollector{
		store: s,
		projectsByStatus: prometheus.NewDesc(
			fqName("projects_total"),
			"Total number of projects by lifecycle status.",
			[]string{"status"},
			prometheus.Labels{},
		),
		vmsByCategory: prometheus.NewDesc(
			fqName("vms_total"),
			"Total number of vms to migrate by risk category.",
			[]string{"category"},
			prometheus.Labels{},
		),
		wavesByStatus: prometheus.NewDesc(
			fqName("waves_total"),
			"Total number of waves by status.",
			[]string{"status"},
			prometheus.Labels{},
		),
		openGapsBySeverity: prometheus.NewDesc(
			fqName("open_gaps_total"),
			"Total number of open readiness gaps by severity.",
			[]string{"severity"},
			prometheus.Labels{},
		),
	}
}

func (c *plannerStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.projectsByStatus
	ch <- c.vmsByCategory
	ch <- c.wavesByStatus
	ch <- c.openGapsBySeverity
}

// Collect implements Collector.
func (c *plannerStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Statistics(context.Background())
	if err != nil {
		zap.S().Named("stats_collector").Errorf("failed to collect planner statistics: %s", err)
		return
	}

	emit := func(desc *prometheus.Desc, values map[string]int) {
		for label, total := range values {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(total), label)
		}
	}
	emit(c.projectsByStatus, stats.ProjectsByStatus)
	emit(c.vmsByCategory, stats.VMsByCategory)
	emit(c.wavesByStatus, stats.WavesByStatus)
	emit(c.openGapsBySeverity, stats.OpenGapsBySeverity)
}
