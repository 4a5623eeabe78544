package service_test

import (
	"context"

	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("inventory service", Ordered, func() {
	var (
		s       store.Store
		srv     *service.InventoryService
		ps      *service.ProjectService
		ctx     context.Context
		project *model.Project
	)

	BeforeAll(func() {
		s = store.NewStore(newTestDB())
		srv = service.NewInventoryService(s)
		ps = service.NewProjectService(s, nil, planner.DefaultSettings())
		ctx = context.TODO()
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		project = newTestProject(ctx, ps, "inventory")
	})

	AfterEach(func() {
		deleteProjects(ctx, ps)
	})

	Context("import", func() {
		It("stores vms, tenants, dependencies and mappings", func() {
			res, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs:             []planner.VM{testVM("web", "fin", 20), testVM("db", "fin", 200), testVM("batch", "", 50)},
				Tenants:         []planner.Tenant{{Key: "fin", Name: "Finance", Domain: "corp", Project: "finance"}},
				Dependencies:    []inventory.Dependency{{VM: "web", DependsOn: "db"}},
				NetworkMappings: []planner.NetworkMapping{{Source: "VM Network", Target: "provider-net"}},
			})
			Expect(err).To(BeNil())
			Expect(res).To(Equal(service.ImportResult{VMs: 3, Tenants: 1, Dependencies: 1, NetworkMappings: 1}))

			vms, total, err := srv.ListVMs(ctx, project.ID, testOwner, service.VMFilter{})
			Expect(err).To(BeNil())
			Expect(total).To(BeNumerically("==", 3))
			Expect(vms).To(HaveLen(3))

			tenants, err := srv.ListTenants(ctx, project.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(tenants).To(HaveLen(1))
			Expect(tenants[0].TargetDomain).To(Equal("corp"))

			deps, err := srv.ListDependencies(ctx, project.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(deps).To(HaveLen(1))
		})

		It("creates a tenant for an unknown key", func() {
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("web", "hr", 20)},
			})
			Expect(err).To(BeNil())

			tenants, err := srv.ListTenants(ctx, project.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(tenants).To(HaveLen(1))
			Expect(tenants[0].Key).To(Equal("hr"))
		})

		It("keeps overrides of re-imported vms", func() {
			inv := inventory.Inventory{VMs: []planner.VM{testVM("web", "", 20)}}
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inv)
			Expect(err).To(BeNil())

			mode := "cold"
			_, err = srv.UpdateVMOverrides(ctx, project.ID, testOwner, "web", mappers.VMOverrideForm{ManualMode: &mode})
			Expect(err).To(BeNil())

			inv.VMs[0].RAMGB = 16
			_, err = srv.ImportInventory(ctx, project.ID, testOwner, inv)
			Expect(err).To(BeNil())

			vm, err := srv.GetVM(ctx, project.ID, testOwner, "web")
			Expect(err).To(BeNil())
			Expect(vm.RAMGB).To(BeNumerically("==", 16))
			Expect(vm.ManualModeOverride).NotTo(BeNil())
			Expect(*vm.ManualModeOverride).To(Equal("cold"))
		})

		It("rejects a dependency cycle with its path", func() {
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("a", "", 1), testVM("b", "", 1), testVM("c", "", 1)},
				Dependencies: []inventory.Dependency{
					{VM: "a", DependsOn: "b"},
					{VM: "b", DependsOn: "c"},
					{VM: "c", DependsOn: "a"},
				},
			})
			Expect(err).NotTo(BeNil())
			cycle, ok := err.(*service.ErrCycle)
			Expect(ok).To(BeTrue())
			Expect(cycle.Path).To(ContainElements("a", "b", "c"))

			_, total, err := srv.ListVMs(ctx, project.ID, testOwner, service.VMFilter{})
			Expect(err).To(BeNil())
			Expect(total).To(BeZero())
		})

		It("rejects a dependency on an unknown vm", func() {
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs:          []planner.VM{testVM("a", "", 1)},
				Dependencies: []inventory.Dependency{{VM: "a", DependsOn: "ghost"}},
			})
			Expect(err).NotTo(BeNil())
			var validation *service.ErrValidation
			Expect(err).To(BeAssignableToTypeOf(validation))
		})
	})

	Context("dependencies", func() {
		BeforeEach(func() {
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs:          []planner.VM{testVM("a", "", 1), testVM("b", "", 1)},
				Dependencies: []inventory.Dependency{{VM: "a", DependsOn: "b"}},
			})
			Expect(err).To(BeNil())
		})

		It("refuses an edge closing a cycle", func() {
			err := srv.AddDependency(ctx, project.ID, testOwner, "b", "a")
			Expect(err).NotTo(BeNil())
			var cycle *service.ErrCycle
			Expect(err).To(BeAssignableToTypeOf(cycle))
		})

		It("refuses a duplicate edge", func() {
			err := srv.AddDependency(ctx, project.ID, testOwner, "a", "b")
			Expect(err).NotTo(BeNil())
			var dup *service.ErrDuplicate
			Expect(err).To(BeAssignableToTypeOf(dup))
		})

		It("removes an edge", func() {
			Expect(srv.RemoveDependency(ctx, project.ID, testOwner, "a", "b")).To(Succeed())
			Expect(srv.AddDependency(ctx, project.ID, testOwner, "b", "a")).To(Succeed())

			err := srv.RemoveDependency(ctx, project.ID, testOwner, "a", "b")
			Expect(service.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("overrides", func() {
		BeforeEach(func() {
			_, err := srv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("a", "", 1)},
			})
			Expect(err).To(BeNil())
		})

		It("rejects a pin to an unknown cohort", func() {
			cohort := "ghost"
			_, err := srv.UpdateVMOverrides(ctx, project.ID, testOwner, "a", mappers.VMOverrideForm{PinnedCohort: &cohort})
			Expect(service.IsNotFound(err)).To(BeTrue())
		})

		It("pins to an existing cohort and clears the mode", func() {
			_, err := srv.CreateCohort(ctx, project.ID, testOwner, mappers.CohortForm{Key: "pilot"})
			Expect(err).To(BeNil())

			cohort, mode, exclude := "pilot", "", true
			vm, err := srv.UpdateVMOverrides(ctx, project.ID, testOwner, "a", mappers.VMOverrideForm{
				PinnedCohort: &cohort,
				ManualMode:   &mode,
				Exclude:      &exclude,
			})
			Expect(err).To(BeNil())
			Expect(vm.PinnedCohort).To(Equal("pilot"))
			Expect(vm.ManualModeOverride).To(BeNil())
			Expect(vm.ExcludeFromMigration).To(BeTrue())
		})

		It("fails on an unknown vm", func() {
			_, err := srv.UpdateVMOverrides(ctx, project.ID, testOwner, "ghost", mappers.VMOverrideForm{})
			Expect(service.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("tenants and cohorts", func() {
		It("creates and updates a tenant", func() {
			_, err := srv.CreateCohort(ctx, project.ID, testOwner, mappers.CohortForm{Key: "c1", Position: 1})
			Expect(err).To(BeNil())

			name := "Finance"
			_, err = srv.CreateTenant(ctx, project.ID, testOwner, mappers.TenantForm{Key: "fin", Name: &name})
			Expect(err).To(BeNil())

			_, err = srv.CreateTenant(ctx, project.ID, testOwner, mappers.TenantForm{Key: "fin"})
			var dup *service.ErrDuplicate
			Expect(err).To(BeAssignableToTypeOf(dup))

			cohort, domain := "c1", "corp"
			t, err := srv.UpdateTenant(ctx, project.ID, testOwner, mappers.TenantForm{Key: "fin", CohortKey: &cohort, TargetDomain: &domain})
			Expect(err).To(BeNil())
			Expect(t.CohortKey).To(Equal("c1"))
			Expect(t.TargetDomain).To(Equal("corp"))
			Expect(t.Name).To(Equal("Finance"))
		})

		It("rejects invalid cohorts", func() {
			zero := 0.0
			_, err := srv.CreateCohort(ctx, project.ID, testOwner, mappers.CohortForm{Key: "c1", CPUOvercommit: &zero})
			var validation *service.ErrValidation
			Expect(err).To(BeAssignableToTypeOf(validation))
		})

		It("deletes a cohort without frozen waves", func() {
			_, err := srv.CreateCohort(ctx, project.ID, testOwner, mappers.CohortForm{Key: "c1"})
			Expect(err).To(BeNil())

			Expect(srv.DeleteCohort(ctx, project.ID, testOwner, "c1")).To(Succeed())
			cohorts, err := srv.ListCohorts(ctx, project.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(cohorts).To(BeEmpty())
		})
	})

	Context("network mappings", func() {
		It("replaces every mapping", func() {
			_, err := srv.SetNetworkMappings(ctx, project.ID, testOwner, []planner.NetworkMapping{{Source: "a", Target: "x"}, {Source: "b", Target: "y"}})
			Expect(err).To(BeNil())

			stored, err := srv.SetNetworkMappings(ctx, project.ID, testOwner, []planner.NetworkMapping{{Source: "c", Target: "z"}})
			Expect(err).To(BeNil())
			Expect(stored).To(HaveLen(1))
			Expect(stored[0].Source).To(Equal("c"))
		})
	})
})
