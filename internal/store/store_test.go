package store_test

import (
	"context"

	"github.com/kubev2v/wave-planner/internal/planner"
	st "github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Store", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		gormDB = newTestDB()
		store = st.NewStore(gormDB)
		Expect(store).ToNot(BeNil())
	})

	AfterAll(func() {
		store.Close()
	})

	Context("transaction", func() {
		It("insert a project successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			project, err := store.Project().Create(ctx, model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(project).ToNot(BeNil())
			Expect(err).To(BeNil())

			// commit
			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from projects;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rollback a project successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			project, err := store.Project().Create(ctx, model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(project).ToNot(BeNil())
			Expect(err).To(BeNil())

			// count in the same transaction
			projects, err := store.Project().List(ctx, st.NewProjectQueryFilter())
			Expect(err).To(BeNil())
			Expect(projects).To(HaveLen(1))

			// rollback
			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from projects;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})

		It("locks a project inside a transaction", func() {
			project, err := store.Project().Create(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(BeNil())

			Expect(store.LockProject(context.TODO(), project.ID)).ToNot(Succeed())

			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())
			Expect(store.LockProject(ctx, project.ID)).To(Succeed())
			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			gormDB.Exec("DELETE from projects;")
		})
	})

	Context("statistics", func() {
		It("counts rows by label", func() {
			project, err := store.Project().Create(context.TODO(), model.NewProject("p1", "admin", planner.DefaultSettings()))
			Expect(err).To(BeNil())

			Expect(store.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: project.ID, Key: "vm-1", Name: "vm-1", RiskCategory: "GREEN"},
				{ProjectID: project.ID, Key: "vm-2", Name: "vm-2", RiskCategory: "GREEN"},
				{ProjectID: project.ID, Key: "vm-3", Name: "vm-3"},
				{ProjectID: project.ID, Key: "vm-4", Name: "vm-4", RiskCategory: "RED", ExcludeFromMigration: true},
			})).To(Succeed())
			Expect(store.Gap().Upsert(context.TODO(), []model.TargetGap{
				{ProjectID: project.ID, Scope: "t1", Type: "missing_domain", Resource: "d1", Severity: "critical", Status: "open"},
				{ProjectID: project.ID, Scope: "t1", Type: "missing_image", Resource: "rhel", Severity: "warning", Status: "resolved"},
			})).To(Succeed())

			stats, err := store.Statistics(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats.ProjectsByStatus).To(Equal(map[string]int{model.ProjectStatusDraft: 1}))
			Expect(stats.VMsByCategory).To(Equal(map[string]int{"GREEN": 2, "unknown": 1}))
			Expect(stats.OpenGapsBySeverity).To(Equal(map[string]int{"critical": 1}))
			Expect(stats.WavesByStatus).To(BeEmpty())
		})

		AfterEach(func() {
			gormDB.Exec("DELETE from target_gaps;")
			gormDB.Exec("DELETE from vms;")
			gormDB.Exec("DELETE from projects;")
		})
	})
})
