package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var _ = Describe("database metrics", func() {
	It("exports the connection pool stats once per process", func() {
		first := newTestDB()
		second := newTestDB()
		for _, db := range []*gorm.DB{first, second} {
			sqlDB, err := db.DB()
			Expect(err).To(BeNil())
			DeferCleanup(sqlDB.Close)
		}

		families, err := prometheus.DefaultGatherer.Gather()
		Expect(err).To(BeNil())

		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		Expect(names).To(ContainElements("go_sql_max_open_connections", "go_sql_open_connections"))

		for _, f := range families {
			if f.GetName() != "go_sql_max_open_connections" {
				continue
			}
			Expect(f.GetMetric()).To(HaveLen(1))
			Expect(f.GetMetric()[0].GetGauge().GetValue()).To(Equal(100.0))
			Expect(f.GetMetric()[0].GetLabel()[0].GetValue()).To(Equal("wave_planner"))
		}
	})
})
