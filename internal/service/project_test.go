package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("project service", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		srv    *service.ProjectService
		ctx    context.Context
	)

	BeforeAll(func() {
		gormdb = newTestDB()
		s = store.NewStore(gormdb)
		srv = service.NewProjectService(s, nil, planner.DefaultSettings())
		ctx = context.TODO()
	})

	AfterAll(func() {
		s.Close()
	})

	AfterEach(func() {
		deleteProjects(ctx, srv)
	})

	Context("create", func() {
		It("creates a draft project with its first risk configuration active", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			Expect(p.Status).To(Equal(model.ProjectStatusDraft))
			Expect(p.Owner).To(Equal(testOwner))
			Expect(p.ActiveRiskConfigID).NotTo(BeNil())
			Expect(p.Settings.Data).To(Equal(planner.DefaultSettings()))

			configs, err := srv.ListRiskConfigs(ctx, p.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(configs).To(HaveLen(1))
			Expect(configs[0].Version).To(Equal(1))
		})

		It("creates a project without rules", func() {
			p, err := srv.CreateProject(ctx, mappers.ProjectCreateForm{Name: "bare", Owner: testOwner})
			Expect(err).To(BeNil())
			Expect(p.ActiveRiskConfigID).To(BeNil())
		})

		It("rejects a duplicate name for the same owner", func() {
			newTestProject(ctx, srv, "datacenter-a")

			_, err := srv.CreateProject(ctx, mappers.ProjectCreateForm{Name: "datacenter-a", Owner: testOwner})
			Expect(err).NotTo(BeNil())
			var dup *service.ErrDuplicate
			Expect(err).To(BeAssignableToTypeOf(dup))
		})

		It("rejects invalid settings", func() {
			settings := planner.DefaultSettings()
			settings.AgentCount = 0

			_, err := srv.CreateProject(ctx, mappers.ProjectCreateForm{Name: "bad", Owner: testOwner, Settings: &settings})
			Expect(err).NotTo(BeNil())
			var validation *service.ErrValidation
			Expect(err).To(BeAssignableToTypeOf(validation))
		})

		It("hides projects of other owners", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			_, err := srv.GetProject(ctx, p.ID, "bob")
			Expect(service.IsNotFound(err)).To(BeTrue())

			projects, err := srv.ListProjects(ctx, "bob", false)
			Expect(err).To(BeNil())
			Expect(projects).To(BeEmpty())
		})
	})

	Context("risk configurations", func() {
		It("numbers versions and activates on request", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			rules := classifier.DefaultConfig()
			rc, err := srv.CreateRiskConfig(ctx, p.ID, testOwner, rules, false)
			Expect(err).To(BeNil())
			Expect(rc.Version).To(Equal(2))

			got, err := srv.GetProject(ctx, p.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(*got.ActiveRiskConfigID).NotTo(Equal(rc.ID))

			got, err = srv.ActivateRiskConfig(ctx, p.ID, testOwner, rc.ID)
			Expect(err).To(BeNil())
			Expect(*got.ActiveRiskConfigID).To(Equal(rc.ID))
		})

		It("fails to activate an unknown version", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			_, err := srv.ActivateRiskConfig(ctx, p.ID, testOwner, uuid.New())
			Expect(service.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("transitions", func() {
		It("follows the lifecycle", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			p, err := srv.TransitionProject(ctx, p.ID, testOwner, model.ProjectStatusAssessment)
			Expect(err).To(BeNil())
			Expect(p.Status).To(Equal(model.ProjectStatusAssessment))

			_, err = srv.TransitionProject(ctx, p.ID, testOwner, model.ProjectStatusExecuting)
			Expect(err).NotTo(BeNil())
			var transition *service.ErrInvalidTransition
			Expect(err).To(BeAssignableToTypeOf(transition))
		})

		It("archives a cancelled project into its summary", func() {
			p := newTestProject(ctx, srv, "datacenter-a")
			inv := service.NewInventoryService(s)
			_, err := inv.ImportInventory(ctx, p.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("vm-1", "fin", 100), testVM("vm-2", "fin", 50)},
			})
			Expect(err).To(BeNil())

			_, err = srv.TransitionProject(ctx, p.ID, testOwner, model.ProjectStatusCancelled)
			Expect(err).To(BeNil())
			archived, err := srv.TransitionProject(ctx, p.ID, testOwner, model.ProjectStatusArchived)
			Expect(err).To(BeNil())

			Expect(archived.Summary).NotTo(BeNil())
			Expect(archived.Summary.Data.VMCount).To(Equal(2))
			Expect(archived.Summary.Data.TenantCount).To(Equal(1))
			Expect(archived.Summary.Data.TotalDiskGB).To(BeNumerically("==", 150))
			Expect(archived.ActiveRiskConfigID).To(BeNil())

			var count int64
			Expect(gormdb.Table("vms").Where("project_id = ?", p.ID).Count(&count).Error).To(BeNil())
			Expect(count).To(BeZero())

			_, err = srv.UpdateSettings(ctx, p.ID, testOwner, planner.DefaultSettings())
			Expect(err).NotTo(BeNil())
			var transition *service.ErrInvalidTransition
			Expect(err).To(BeAssignableToTypeOf(transition))
		})
	})

	Context("delete", func() {
		It("removes the project and its rows", func() {
			p := newTestProject(ctx, srv, "datacenter-a")

			Expect(srv.DeleteProject(ctx, p.ID, testOwner)).To(Succeed())

			_, err := srv.GetProject(ctx, p.ID, testOwner)
			Expect(service.IsNotFound(err)).To(BeTrue())
		})
	})
})
