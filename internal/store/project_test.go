package store_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("project store", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		gormdb = newTestDB()
		s = store.NewStore(gormdb)
	})

	AfterAll(func() {
		s.Close()
	})

	Context("create", func() {
		It("successfully creates a project", func() {
			settings := planner.DefaultSettings()
			settings.TargetVMsPerDay = 10

			project, err := s.Project().Create(context.TODO(), model.NewProject("p1", "admin", settings))
			Expect(err).To(BeNil())

			got, err := s.Project().Get(context.TODO(), project.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.ProjectStatusDraft))
			Expect(got.Settings.Data.TargetVMsPerDay).To(Equal(10))
			Expect(got.Summary).To(BeNil())
		})

		It("fails on duplicate name for the same owner", func() {
			_, err := s.Project().Create(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(BeNil())

			_, err = s.Project().Create(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(MatchError(store.ErrDuplicateKey))

			_, err = s.Project().Create(context.TODO(), model.NewProject("p1", "other", planner.DefaultSettings()))
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			gormdb.Exec("DELETE from projects;")
		})
	})

	Context("list", func() {
		BeforeEach(func() {
			for _, p := range []struct{ name, owner, status string }{
				{"p1", "admin", model.ProjectStatusDraft},
				{"p2", "admin", model.ProjectStatusArchived},
				{"p3", "user", model.ProjectStatusPlanned},
			} {
				m := model.NewProject(p.name, p.owner, planner.DefaultSettings())
				m.Status = p.status
				_, err := s.Project().Create(context.TODO(), m)
				Expect(err).To(BeNil())
			}
		})

		It("filters by owner", func() {
			projects, err := s.Project().List(context.TODO(), store.NewProjectQueryFilter().ByOwner("admin"))
			Expect(err).To(BeNil())
			Expect(projects).To(HaveLen(2))
		})

		It("hides archived projects", func() {
			projects, err := s.Project().List(context.TODO(), store.NewProjectQueryFilter().ByOwner("admin").WithoutArchived())
			Expect(err).To(BeNil())
			Expect(projects).To(HaveLen(1))
			Expect(projects[0].Name).To(Equal("p1"))
		})

		It("filters by status", func() {
			projects, err := s.Project().List(context.TODO(), store.NewProjectQueryFilter().ByStatus(model.ProjectStatusPlanned, model.ProjectStatusDraft))
			Expect(err).To(BeNil())
			Expect(projects).To(HaveLen(2))
		})

		AfterEach(func() {
			gormdb.Exec("DELETE from projects;")
		})
	})

	Context("update", func() {
		It("successfully updates status and summary", func() {
			project, err := s.Project().Create(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(BeNil())

			project.Status = model.ProjectStatusArchived
			project.Summary = model.MakeJSONField(model.ProjectSummary{VMCount: 3, WaveCount: 1})
			updated, err := s.Project().Update(context.TODO(), *project)
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal(model.ProjectStatusArchived))
			Expect(updated.Summary).ToNot(BeNil())
			Expect(updated.Summary.Data.VMCount).To(Equal(3))
		})

		It("fails on missing project", func() {
			_, err := s.Project().Update(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		AfterEach(func() {
			gormdb.Exec("DELETE from projects;")
		})
	})

	Context("risk config", func() {
		It("numbers versions per project", func() {
			projectID := uuid.New()
			otherID := uuid.New()

			first, err := s.RiskConfig().Create(context.TODO(), model.RiskConfig{ProjectID: projectID, Rules: model.MakeJSONField(classifier.DefaultConfig())})
			Expect(err).To(BeNil())
			Expect(first.Version).To(Equal(1))

			second, err := s.RiskConfig().Create(context.TODO(), model.RiskConfig{ProjectID: projectID, Rules: model.MakeJSONField(classifier.DefaultConfig())})
			Expect(err).To(BeNil())
			Expect(second.Version).To(Equal(2))

			other, err := s.RiskConfig().Create(context.TODO(), model.RiskConfig{ProjectID: otherID, Rules: model.MakeJSONField(classifier.DefaultConfig())})
			Expect(err).To(BeNil())
			Expect(other.Version).To(Equal(1))

			cfgs, err := s.RiskConfig().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(cfgs).To(HaveLen(2))
			Expect(cfgs[0].ID).To(Equal(first.ID))
			Expect(cfgs[0].Rules.Data.GreenThreshold).To(Equal(classifier.DefaultConfig().GreenThreshold))
		})

		It("locks a version", func() {
			cfg, err := s.RiskConfig().Create(context.TODO(), model.RiskConfig{ProjectID: uuid.New(), Rules: model.MakeJSONField(classifier.DefaultConfig())})
			Expect(err).To(BeNil())
			Expect(cfg.Locked).To(BeFalse())

			Expect(s.RiskConfig().Lock(context.TODO(), cfg.ID)).To(Succeed())

			got, err := s.RiskConfig().Get(context.TODO(), cfg.ID)
			Expect(err).To(BeNil())
			Expect(got.Locked).To(BeTrue())
		})

		AfterEach(func() {
			gormdb.Exec("DELETE from risk_configs;")
		})
	})
})
