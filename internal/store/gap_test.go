package store_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("gap store", Ordered, func() {
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
		gormdb.Exec("DELETE from target_gaps;")
		gormdb.Exec("DELETE from destination_snapshots;")
		gormdb.Exec("DELETE from passes;")
	})

	Context("gaps", func() {
		It("upserts by identity", func() {
			gap := model.TargetGap{ProjectID: projectID, Scope: "t1", Type: string(readiness.GapMissingDomain), Resource: "d1", Severity: "critical", Status: "open"}
			Expect(s.Gap().Upsert(context.TODO(), []model.TargetGap{gap})).To(Succeed())

			gap.ID = uuid.Nil
			gap.Status = "resolved"
			gap.AutoResolved = true
			Expect(s.Gap().Upsert(context.TODO(), []model.TargetGap{gap})).To(Succeed())

			gaps, err := s.Gap().List(context.TODO(), store.NewGapQueryFilter().ByProject(projectID))
			Expect(err).To(BeNil())
			Expect(gaps).To(HaveLen(1))
			Expect(gaps[0].Status).To(Equal("resolved"))
			Expect(gaps[0].AutoResolved).To(BeTrue())
			Expect(gaps[0].Record().Type).To(Equal(readiness.GapMissingDomain))
		})

		It("filters by scope, status and severity", func() {
			Expect(s.Gap().Upsert(context.TODO(), []model.TargetGap{
				{ProjectID: projectID, Scope: "t1", Type: "missing_domain", Resource: "d1", Severity: "critical", Status: "open"},
				{ProjectID: projectID, Scope: "t2", Type: "missing_image", Resource: "rhel", Severity: "warning", Status: "open"},
				{ProjectID: projectID, Scope: "t2", Type: "missing_flavor", Resource: "2vcpu", Severity: "critical", Status: "overridden"},
			})).To(Succeed())

			gaps, err := s.Gap().List(context.TODO(), store.NewGapQueryFilter().ByProject(projectID).ByScopes("t2").ByStatus("open"))
			Expect(err).To(BeNil())
			Expect(gaps).To(HaveLen(1))
			Expect(gaps[0].Type).To(Equal("missing_image"))

			gaps, err = s.Gap().List(context.TODO(), store.NewGapQueryFilter().ByProject(projectID).BySeverity("critical"))
			Expect(err).To(BeNil())
			Expect(gaps).To(HaveLen(2))
		})

		It("records an operator resolution", func() {
			Expect(s.Gap().Upsert(context.TODO(), []model.TargetGap{
				{ProjectID: projectID, Scope: "t1", Type: "missing_domain", Resource: "d1", Severity: "critical", Status: "open"},
			})).To(Succeed())
			gaps, err := s.Gap().List(context.TODO(), store.NewGapQueryFilter().ByProject(projectID))
			Expect(err).To(BeNil())

			gap := gaps[0]
			gap.Status = "overridden"
			gap.ResolvedBy = "admin"
			gap.Note = "domain created by hand"
			updated, err := s.Gap().Update(context.TODO(), gap)
			Expect(err).To(BeNil())
			Expect(updated.Status).To(Equal("overridden"))
			Expect(updated.ResolvedBy).To(Equal("admin"))
		})
	})

	Context("destination snapshots", func() {
		It("returns the latest snapshot", func() {
			_, err := s.Destination().Latest(context.TODO(), projectID)
			Expect(err).To(MatchError(store.ErrRecordNotFound))

			for _, domain := range []string{"old", "new"} {
				_, err := s.Destination().Create(context.TODO(), model.DestinationSnapshot{
					ProjectID: projectID,
					Source:    "test",
					Inventory: model.MakeJSONField(readiness.Snapshot{Domains: []string{domain}}),
				})
				Expect(err).To(BeNil())
			}

			latest, err := s.Destination().Latest(context.TODO(), projectID)
			Expect(err).To(BeNil())
			Expect(latest.Inventory.Data.Domains).To(Equal([]string{"new"}))
		})
	})

	Context("passes", func() {
		It("creates and finishes a pass", func() {
			pass, err := s.Pass().Create(context.TODO(), model.NewPass(projectID, model.PassKindClassify))
			Expect(err).To(BeNil())
			Expect(pass.Status).To(Equal(model.PassStatusRunning))

			pass.Status = model.PassStatusCompleted
			pass.VMsAffected = 4
			Expect(s.Pass().Update(context.TODO(), *pass)).To(Succeed())

			passes, err := s.Pass().List(context.TODO(), store.NewPassQueryFilter().ByProject(projectID).ByKind(model.PassKindClassify))
			Expect(err).To(BeNil())
			Expect(passes).To(HaveLen(1))
			Expect(passes[0].Status).To(Equal(model.PassStatusCompleted))
			Expect(passes[0].VMsAffected).To(Equal(4))
		})
	})
})
