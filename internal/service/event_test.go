package service_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kubev2v/wave-planner/internal/events"
	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("event handler", Ordered, func() {
	var (
		s        store.Store
		writer   *testwriter
		producer *events.EventProducer
		ps       *service.ProjectService
		ctx      context.Context
	)

	BeforeAll(func() {
		s = store.NewStore(newTestDB())
		writer = newTestWriter()
		producer = events.NewEventProducer(writer)
		ps = service.NewProjectService(s, producer, planner.DefaultSettings())
		ctx = context.TODO()
	})

	AfterAll(func() {
		_ = producer.Close()
		s.Close()
	})

	Context("push events", func() {
		It("publishes passes and status changes", func() {
			project := newTestProject(ctx, ps, "events")
			_, err := service.NewInventoryService(s).ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("vm-1", "", 10)},
			})
			Expect(err).To(BeNil())

			planSrv := service.NewPlannerService(s, newTestPool(), service.WithEventProducer(producer))
			_, err = planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())

			waves, err := service.NewWaveService(s, producer).ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())
			Expect(waves).To(HaveLen(1))
			_, err = service.NewWaveService(s, producer).TransitionWave(ctx, project.ID, testOwner, waves[0].ID, model.WaveStatusCancelled)
			Expect(err).To(BeNil())

			Eventually(writer.Kinds, 2*time.Second, 50*time.Millisecond).Should(ContainElements(
				events.PassCompletedKind,
				events.ProjectStatusKind,
				events.WaveStatusKind,
			))

			var wave events.WaveEvent
			writer.mu.Lock()
			defer writer.mu.Unlock()
			for _, m := range writer.Messages {
				if m.Type() == events.WaveStatusKind {
					Expect(json.Unmarshal(m.Data(), &wave)).To(Succeed())
				}
			}
			Expect(wave.From).To(Equal(model.WaveStatusPlanned))
			Expect(wave.To).To(Equal(model.WaveStatusCancelled))
			Expect(wave.ProjectID).To(Equal(project.ID.String()))
		})
	})
})
