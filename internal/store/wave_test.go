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

var _ = Describe("wave store", Ordered, func() {
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
		gormdb.Exec("DELETE from cohorts;")
	})

	Context("cohorts", func() {
		It("lists cohorts by position", func() {
			for _, c := range []model.Cohort{
				{ProjectID: projectID, Key: "unassigned", Position: 9, Auto: true},
				{ProjectID: projectID, Key: "priority-0", Position: 0, Auto: true},
				{ProjectID: projectID, Key: "finance", Position: 0},
			} {
				_, err := s.Cohort().Create(context.TODO(), c)
				Expect(err).To(BeNil())
			}

			cohorts, err := s.Cohort().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(cohorts).To(HaveLen(3))
			Expect(cohorts[0].Key).To(Equal("finance"))
			Expect(cohorts[1].Key).To(Equal("priority-0"))
			Expect(cohorts[2].Key).To(Equal("unassigned"))
		})

		It("deletes stale automatic cohorts only", func() {
			for _, c := range []model.Cohort{
				{ProjectID: projectID, Key: "priority-0", Auto: true},
				{ProjectID: projectID, Key: "priority-1", Auto: true},
				{ProjectID: projectID, Key: "finance"},
			} {
				_, err := s.Cohort().Create(context.TODO(), c)
				Expect(err).To(BeNil())
			}

			Expect(s.Cohort().DeleteAuto(context.TODO(), projectID, []string{"priority-1"})).To(Succeed())

			cohorts, err := s.Cohort().List(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(cohorts).To(HaveLen(2))
			keys := []string{cohorts[0].Key, cohorts[1].Key}
			Expect(keys).To(ConsistOf("priority-1", "finance"))
		})

		It("fails on duplicate key", func() {
			_, err := s.Cohort().Create(context.TODO(), model.Cohort{ProjectID: projectID, Key: "finance"})
			Expect(err).To(BeNil())
			_, err = s.Cohort().Create(context.TODO(), model.Cohort{ProjectID: projectID, Key: "finance"})
			Expect(err).To(MatchError(store.ErrDuplicateKey))
		})
	})

	Context("waves", func() {
		var executing, planned model.Wave

		BeforeEach(func() {
			executing = model.Wave{ID: uuid.New(), ProjectID: projectID, CohortKey: "c1", Index: 1, Sequence: 1, Status: model.WaveStatusExecuting}
			planned = model.Wave{ID: uuid.New(), ProjectID: projectID, CohortKey: "c1", Index: 2, Sequence: 2, Status: model.WaveStatusPlanned}
			Expect(s.Wave().Create(context.TODO(), []model.Wave{planned, executing})).To(Succeed())

			Expect(s.VM().Upsert(context.TODO(), []model.VM{
				{ProjectID: projectID, Key: "vm-2", Name: "b", WaveID: &executing.ID, WaveOrder: 2},
				{ProjectID: projectID, Key: "vm-1", Name: "a", WaveID: &executing.ID, WaveOrder: 1},
				{ProjectID: projectID, Key: "vm-3", Name: "c", WaveID: &planned.ID, WaveOrder: 1},
			})).To(Succeed())
		})

		It("lists waves in sequence with ordered members", func() {
			waves, err := s.Wave().List(context.TODO(), store.NewWaveQueryFilter().ByProject(projectID))
			Expect(err).To(BeNil())
			Expect(waves).To(HaveLen(2))
			Expect(waves[0].ID).To(Equal(executing.ID))
			Expect(waves[0].MemberKeys()).To(Equal([]string{"vm-1", "vm-2"}))
			Expect(waves[0].Frozen()).To(BeTrue())
			Expect(waves[1].Frozen()).To(BeFalse())
		})

		It("deletes only waves that are not frozen", func() {
			Expect(s.VM().ClearPlacement(context.TODO(), projectID, []uuid.UUID{executing.ID})).To(Succeed())
			Expect(s.Wave().Delete(context.TODO(), store.NewWaveQueryFilter().ByProject(projectID).NotFrozen())).To(Succeed())

			waves, err := s.Wave().List(context.TODO(), store.NewWaveQueryFilter().ByProject(projectID))
			Expect(err).To(BeNil())
			Expect(waves).To(HaveLen(1))
			Expect(waves[0].ID).To(Equal(executing.ID))
		})

		It("updates the status", func() {
			Expect(s.Wave().UpdateStatus(context.TODO(), planned.ID, model.WaveStatusPreChecksPassed)).To(Succeed())

			got, err := s.Wave().Get(context.TODO(), planned.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.WaveStatusPreChecksPassed))
			Expect(got.VMs).To(HaveLen(1))

			Expect(s.Wave().UpdateStatus(context.TODO(), uuid.New(), model.WaveStatusExecuting)).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("purge", func() {
		It("removes every child row of a project", func() {
			Expect(s.Wave().Create(context.TODO(), []model.Wave{{ID: uuid.New(), ProjectID: projectID, CohortKey: "c1", Status: model.WaveStatusPlanned}})).To(Succeed())
			Expect(s.VM().Upsert(context.TODO(), []model.VM{{ProjectID: projectID, Key: "vm-1", Name: "a"}})).To(Succeed())
			_, err := s.Cohort().Create(context.TODO(), model.Cohort{ProjectID: projectID, Key: "c1"})
			Expect(err).To(BeNil())

			Expect(s.PurgeProject(context.TODO(), projectID)).To(Succeed())

			for _, table := range []string{"vms", "waves", "cohorts"} {
				count := 0
				Expect(gormdb.Raw("SELECT COUNT(*) from " + table + ";").Scan(&count).Error).To(BeNil())
				Expect(count).To(Equal(0), table)
			}
		})
	})
})
