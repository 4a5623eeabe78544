package grouping_test

import (
	"github.com/kubev2v/wave-planner/internal/grouping"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("tenants", func() {
	members := []grouping.Member{
		{Key: "1", Name: "fin-web-01", Folder: "/DC1/finance/web", ResourcePool: "rp-fin", VCPU: 2, RAMGB: 4, DiskGB: 40},
		{Key: "2", Name: "fin-db-01", Folder: "/DC1/finance/db", ResourcePool: "rp-fin", VCPU: 8, RAMGB: 32, DiskGB: 500},
		{Key: "3", Name: "hr-app-01", Folder: "/DC1/hr", ResourcePool: "rp-hr", VCPU: 4, RAMGB: 8, DiskGB: 80},
		{Key: "4", Name: "orphan", Folder: "", ResourcePool: ""},
	}

	It("detects tenants by folder prefix with aggregates", func() {
		tenants, err := grouping.DetectTenants(members, grouping.DetectOptions{Method: grouping.DetectByFolder})
		Expect(err).To(BeNil())
		Expect(tenants).To(HaveLen(2))
		Expect(tenants[0].Name).To(Equal("DC1/finance"))
		Expect(tenants[0].Members).To(Equal([]string{"1", "2"}))
		Expect(tenants[0].VMCount).To(Equal(2))
		Expect(tenants[0].VCPU).To(Equal(10))
		Expect(tenants[0].RAMGB).To(Equal(36.0))
		Expect(tenants[0].DiskGB).To(Equal(540.0))
		Expect(tenants[0].Method).To(Equal(grouping.DetectByFolder))
		Expect(tenants[1].Name).To(Equal("DC1/hr"))
	})

	It("detects tenants by resource pool", func() {
		tenants, err := grouping.DetectTenants(members, grouping.DetectOptions{Method: grouping.DetectByResourcePool})
		Expect(err).To(BeNil())
		Expect(tenants).To(HaveLen(2))
		Expect(tenants[0].Name).To(Equal("rp-fin"))
	})

	It("detects tenants by naming convention", func() {
		tenants, err := grouping.DetectTenants(members, grouping.DetectOptions{Method: grouping.DetectByNaming, NamingPattern: `^([a-z]+)-`})
		Expect(err).To(BeNil())
		Expect(tenants).To(HaveLen(2))
		Expect(tenants[0].Name).To(Equal("fin"))
		Expect(tenants[1].Name).To(Equal("hr"))
	})

	It("rejects a naming pattern without a capture group", func() {
		_, err := grouping.DetectTenants(members, grouping.DetectOptions{Method: grouping.DetectByNaming, NamingPattern: `^[a-z]+-`})
		Expect(err).NotTo(BeNil())
	})

	It("rejects an unknown method", func() {
		_, err := grouping.DetectTenants(members, grouping.DetectOptions{Method: "astrology"})
		Expect(err).NotTo(BeNil())
	})

	It("groups tenants without explicit cohort by priority", func() {
		plans := grouping.AutoCohorts([]grouping.TenantRef{
			{Key: "hr", Priority: 2},
			{Key: "fin", Priority: 1},
			{Key: "ops", Priority: 1},
			{Key: "legal", Priority: 0, Cohort: "pilot"},
		})
		Expect(plans).To(Equal([]grouping.CohortPlan{
			{Name: "priority-1", Priority: 1, Tenants: []string{"fin", "ops"}},
			{Name: "priority-2", Priority: 2, Tenants: []string{"hr"}},
		}))
	})
})
