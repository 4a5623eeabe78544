package store_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("vm store", Ordered, func() {
	var (
		s         store.Store
		gormdb    *gorm.DB
		projectID uuid.UUID
	)

	BeforeAll(func() {
		gormdb = newTestDB()
		s = store.NewStore(gormdb)
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		projectID = uuid.New()
	})

	AfterEach(func() {
		gormdb.Exec("DELETE from vms;")
		gormdb.Exec("DELETE from waves;")
		gormdb.Exec("DELETE from vm_dependencies;")
		gormdb.Exec("DELETE from tenants;")
	})

	Context("upsert", func() {
		It("keeps overrides and computed fields on re-import", func() {
			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-1", Name: "web", ProvisionedGB: 100},
			})).To(Succeed())

			vm, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())
			cold := "cold"
			vm.ManualModeOverride = &cold
			vm.Priority = 3
			Expect(s.VM().UpdateColumns(context.TODO(), []model.VM{*vm}, store.OverrideColumns...)).To(Succeed())
			vm.RiskScore = 40
			vm.RiskCategory = "YELLOW"
			Expect(s.VM().UpdateColumns(context.TODO(), []model.VM{*vm}, store.ClassificationColumns...)).To(Succeed())

			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-1", Name: "web-renamed", ProvisionedGB: 200},
				{ProjectID: projectID, Key: "vm-2", Name: "db", ProvisionedGB: 50},
			})).To(Succeed())

			got, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())
			Expect(got.ID).To(Equal(vm.ID))
			Expect(got.Name).To(Equal("web-renamed"))
			Expect(got.ProvisionedGB).To(Equal(200.0))
			Expect(got.ManualModeOverride).ToNot(BeNil())
			Expect(*got.ManualModeOverride).To(Equal("cold"))
			Expect(got.Priority).To(Equal(3))
			Expect(got.RiskScore).To(Equal(40))

			count, err := s.VM().Count(context.TODO(), store.NewVMQueryFilter().ByProject(projectID))
			Expect(err).To(BeNil())
			Expect(count).To(Equal(int64(2)))
		})

		It("stores list columns as json", func() {
			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-1", Name: "web", Networks: model.MakeJSONField([]string{"net-a", "net-b"})},
			})).To(Succeed())

			got, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())
			Expect(got.Networks).ToNot(BeNil())
			Expect(got.Networks.Data).To(Equal([]string{"net-a", "net-b"}))
			Expect(got.Flags).To(BeNil())
		})
	})

	Context("list", func() {
		BeforeEach(func() {
			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-3", Name: "c", TenantKey: "t1", RiskCategory: "RED"},
				{ProjectID: projectID, Key: "vm-1", Name: "a", TenantKey: "t1", RiskCategory: "GREEN"},
				{ProjectID: projectID, Key: "vm-2", Name: "b", TenantKey: "t2", RiskCategory: "GREEN", ExcludeFromMigration: true},
				{ProjectID: uuid.New(), Key: "vm-1", Name: "other"},
			})).To(Succeed())
		})

		It("sorts by key and pages", func() {
			vms, err := s.VM().List(context.TODO(), store.NewVMQueryFilter().ByProject(projectID),
				store.NewVMQueryOptions().WithSortOrder(store.SortByKey).WithLimit(2).WithOffset(1))
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(2))
			Expect(vms[0].Key).To(Equal("vm-2"))
			Expect(vms[1].Key).To(Equal("vm-3"))
		})

		It("filters by tenant and category", func() {
			vms, err := s.VM().List(context.TODO(), store.NewVMQueryFilter().ByProject(projectID).ByTenant("t1").ByCategory("GREEN"), nil)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(1))
			Expect(vms[0].Key).To(Equal("vm-1"))
		})

		It("skips excluded vms", func() {
			vms, err := s.VM().List(context.TODO(), store.NewVMQueryFilter().ByProject(projectID).Included(), nil)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(2))
		})

		It("filters by keys", func() {
			vms, err := s.VM().List(context.TODO(), store.NewVMQueryFilter().ByProject(projectID).ByKeys("vm-1", "vm-3"), nil)
			Expect(err).To(BeNil())
			Expect(vms).To(HaveLen(2))
		})
	})

	Context("update columns", func() {
		It("fails on unknown vm", func() {
			err := s.VM().UpdateColumns(context.TODO(), []model.VM{{ID: uuid.New(), ProjectID: projectID}}, store.GroupColumns...)
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("only writes the given columns", func() {
			Expect(s.VM().Upsert(context.TODO(), []model.VM{{ProjectID: projectID, Key: "vm-1", Name: "web"}})).To(Succeed())
			vm, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())

			vm.CohortKey = "priority-0"
			vm.Name = "ignored"
			Expect(s.VM().UpdateColumns(context.TODO(), []model.VM{*vm}, store.GroupColumns...)).To(Succeed())

			got, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())
			Expect(got.CohortKey).To(Equal("priority-0"))
			Expect(got.Name).To(Equal("web"))
		})
	})

	Context("placement", func() {
		It("clears placement outside kept waves", func() {
			kept := uuid.New()
			dropped := uuid.New()
			Expect(s.Wave().Create(context.TODO(), []model.Wave{
				{ID: kept, ProjectID: projectID, CohortKey: "c1", Index: 1, Sequence: 1, Status: model.WaveStatusExecuting},
				{ID: dropped, ProjectID: projectID, CohortKey: "c1", Index: 2, Sequence: 2, Status: model.WaveStatusPlanned},
			})).To(Succeed())
			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-1", Name: "a", WaveID: &kept, WaveOrder: 1},
				{ProjectID: projectID, Key: "vm-2", Name: "b", WaveID: &dropped, WaveOrder: 1},
			})).To(Succeed())

			Expect(s.VM().ClearPlacement(context.TODO(), projectID, []uuid.UUID{kept})).To(Succeed())

			vm1, err := s.VM().Get(context.TODO(), projectID, "vm-1")
			Expect(err).To(BeNil())
			Expect(vm1.WaveID).ToNot(BeNil())
			vm2, err := s.VM().Get(context.TODO(), projectID, "vm-2")
			Expect(err).To(BeNil())
			Expect(vm2.WaveID).To(BeNil())
			Expect(vm2.WaveOrder).To(Equal(0))
		})
	})

	Context("dependencies", func() {
		It("rejects a duplicate edge", func() {
			dep := model.VMDependency{ProjectID: projectID, VMKey: "vm-2", DependsOnKey: "vm-1"}
			Expect(s.Dependency().Create(context.TODO(), dep)).To(Succeed())
			Expect(s.Dependency().Create(context.TODO(), dep)).To(MatchError(store.ErrDuplicateKey))
		})

		It("deletes an edge", func() {
			Expect(s.Dependency().Create(context.TODO(), model.VMDependency{ProjectID: projectID, VMKey: "vm-2", DependsOnKey: "vm-1"})).To(Succeed())
			Expect(s.Dependency().Delete(context.TODO(), projectID, "vm-2", "vm-1")).To(Succeed())
			Expect(s.Dependency().Delete(context.TODO(), projectID, "vm-2", "vm-1")).To(MatchError(store.ErrRecordNotFound))

			deps, err := s.Dependency().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(deps).To(BeEmpty())
		})
	})

	Context("tenants", func() {
		It("upserts tenants without touching confirmation", func() {
			Expect(s.Tenant().Upsert(context.TODO(), []model.Tenant{
				{ProjectID: projectID, Key: "t1", Name: "finance", Method: model.TenantMethodManual, Confirmed: true},
			})).To(Succeed())
			Expect(s.Tenant().Upsert(context.TODO(), []model.Tenant{
				{ProjectID: projectID, Key: "t1", Name: "finance-eu", Priority: 2},
			})).To(Succeed())

			t, err := s.Tenant().Get(context.TODO(), projectID, "t1")
			Expect(err).To(BeNil())
			Expect(t.Name).To(Equal("finance-eu"))
			Expect(t.Priority).To(Equal(2))
			Expect(t.Confirmed).To(BeTrue())
		})
	})
})
