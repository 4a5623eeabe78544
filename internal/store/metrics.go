package store

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

const dbStatsName = "wave_planner"

// registerMetrics exports the connection pool stats of db. Only the first
// pool opened by the process is exported.
func registerMetrics(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	err = prometheus.Register(collectors.NewDBStatsCollector(sqlDB, dbStatsName))
	var already prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &already) {
		return fmt.Errorf("failed to register database metrics: %w", err)
	}
	return nil
}
