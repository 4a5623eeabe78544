package service_test

import (
	"context"
	"time"

	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// heldLoader hands out its snapshot once released or once the caller gives up.
type heldLoader struct {
	snapshot readiness.Snapshot
	entered  chan struct{}
	release  chan struct{}
}

func newHeldLoader(snapshot readiness.Snapshot) *heldLoader {
	return &heldLoader{snapshot: snapshot, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (l *heldLoader) Load(ctx context.Context, _ []readiness.Project) (readiness.Snapshot, error) {
	l.entered <- struct{}{}
	select {
	case <-l.release:
	case <-ctx.Done():
	}
	return l.snapshot, nil
}

type passOutcome struct {
	pass *model.Pass
	err  error
}

var _ = Describe("pass coordination", Ordered, func() {
	var (
		s       store.Store
		ps      *service.ProjectService
		inv     *service.InventoryService
		waveSrv *service.WaveService
		gapSrv  *service.GapService
		ctx     context.Context
		project *model.Project
		stored  readiness.Snapshot
	)

	BeforeAll(func() {
		s = store.NewStore(newTestDB())
		ps = service.NewProjectService(s, nil, planner.DefaultSettings())
		inv = service.NewInventoryService(s)
		waveSrv = service.NewWaveService(s, nil)
		gapSrv = service.NewGapService(s)
		ctx = context.TODO()
		stored = readiness.Snapshot{
			Domains:  []string{"corp"},
			Projects: []readiness.Project{{Name: "hr", Domain: "corp"}},
			Networks: []string{"provider-net"},
		}
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		project = newTestProject(ctx, ps, "coordination")
		_, err := inv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
			VMs: []planner.VM{
				testVM("fin-web", "fin", 20),
				testVM("fin-db", "fin", 300),
				testVM("hr-app", "hr", 40),
			},
			Tenants: []planner.Tenant{
				{Key: "fin", Name: "Finance"},
				{Key: "hr", Name: "HR", Domain: "corp", Project: "hr"},
			},
			Dependencies:    []inventory.Dependency{{VM: "fin-web", DependsOn: "fin-db"}},
			NetworkMappings: []planner.NetworkMapping{{Source: "VM Network", Target: "provider-net"}},
		})
		Expect(err).To(BeNil())
		_, err = gapSrv.UploadDestinationSnapshot(ctx, project.ID, testOwner, stored)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		deleteProjects(ctx, ps)
	})

	It("cancels the in-flight pass of the same kind and commits nothing for it", func() {
		loader := newHeldLoader(readiness.Snapshot{Networks: []string{"stale-net"}})
		planSrv := service.NewPlannerService(s, newTestPool(), service.WithDestinationLoader(loader))
		_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
		Expect(err).To(BeNil())

		first := make(chan passOutcome, 1)
		go func() {
			defer GinkgoRecover()
			pass, err := planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{RefreshDestination: true})
			first <- passOutcome{pass, err}
		}()
		Eventually(loader.entered).Should(Receive())

		second, err := planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{})
		Expect(err).To(BeNil())
		Expect(second.Status).To(Equal(model.PassStatusCompleted))

		var out passOutcome
		Eventually(first).Should(Receive(&out))
		var superseded *service.ErrPassSuperseded
		Expect(out.err).To(BeAssignableToTypeOf(superseded))
		Expect(out.pass.Status).To(Equal(model.PassStatusSuperseded))

		recorded, err := planSrv.GetPass(ctx, project.ID, out.pass.ID)
		Expect(err).To(BeNil())
		Expect(recorded.Status).To(Equal(model.PassStatusSuperseded))
		Expect(recorded.FinishedAt).NotTo(BeNil())

		latest, err := s.Destination().Latest(ctx, project.ID)
		Expect(err).To(BeNil())
		Expect(latest.Inventory.Data.Networks).To(Equal(stored.Networks))
	})

	It("schedules with the settings saved while the pass waited for the project", func() {
		loader := newHeldLoader(stored)
		planSrv := service.NewPlannerService(s, newTestPool(), service.WithDestinationLoader(loader))
		_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
		Expect(err).To(BeNil())

		readinessDone := make(chan passOutcome, 1)
		go func() {
			defer GinkgoRecover()
			pass, err := planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{RefreshDestination: true})
			readinessDone <- passOutcome{pass, err}
		}()
		Eventually(loader.entered).Should(Receive())

		scheduleDone := make(chan passOutcome, 1)
		go func() {
			defer GinkgoRecover()
			pass, err := planSrv.Schedule(ctx, project.ID, service.PassOptions{})
			scheduleDone <- passOutcome{pass, err}
		}()
		Consistently(scheduleDone, 100*time.Millisecond).ShouldNot(Receive())

		settings := planner.DefaultSettings()
		settings.ValidationMinsPerVM = 60
		settings.ValidationEngineers = 1
		_, err = ps.UpdateSettings(ctx, project.ID, testOwner, settings)
		Expect(err).To(BeNil())
		close(loader.release)

		var out passOutcome
		Eventually(readinessDone).Should(Receive(&out))
		Expect(out.err).To(BeNil())
		Eventually(scheduleDone).Should(Receive(&out))
		Expect(out.err).To(BeNil())
		Expect(out.pass.Status).To(Equal(model.PassStatusCompleted))

		waves, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
		Expect(err).To(BeNil())
		Expect(waves).NotTo(BeEmpty())
		for _, w := range waves {
			Expect(w.ValidationHours).To(Equal(float64(w.VMCount)))
		}
	})

	It("drops operator overrides when asked to", func() {
		planSrv := service.NewPlannerService(s, newTestPool())
		cold := "cold"
		priority := 5
		_, err := inv.UpdateVMOverrides(ctx, project.ID, testOwner, "fin-web", mappers.VMOverrideForm{
			ManualMode: &cold,
			Priority:   &priority,
		})
		Expect(err).To(BeNil())

		_, err = planSrv.Classify(ctx, project.ID, service.PassOptions{})
		Expect(err).To(BeNil())
		vm, err := inv.GetVM(ctx, project.ID, testOwner, "fin-web")
		Expect(err).To(BeNil())
		Expect(vm.MigrationMode).To(Equal(cold))
		Expect(vm.ModeSource).To(Equal("manual"))
		Expect(vm.Priority).To(Equal(5))

		pass, err := planSrv.Classify(ctx, project.ID, service.PassOptions{IgnoreOverrides: true})
		Expect(err).To(BeNil())
		Expect(pass.IgnoreOverrides).To(BeTrue())

		vm, err = inv.GetVM(ctx, project.ID, testOwner, "fin-web")
		Expect(err).To(BeNil())
		Expect(vm.ManualModeOverride).To(BeNil())
		Expect(vm.Priority).To(BeZero())
		Expect(vm.ModeSource).To(Equal("computed"))
		Expect(vm.MigrationMode).To(Equal(vm.ComputedMode))
	})
})
