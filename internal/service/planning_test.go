package service_test

import (
	"context"

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

var _ = Describe("planner service", Ordered, func() {
	var (
		s       store.Store
		ps      *service.ProjectService
		inv     *service.InventoryService
		planSrv *service.PlannerService
		waveSrv *service.WaveService
		gapSrv  *service.GapService
		ctx     context.Context
		project *model.Project
	)

	BeforeAll(func() {
		s = store.NewStore(newTestDB())
		ps = service.NewProjectService(s, nil, planner.DefaultSettings())
		inv = service.NewInventoryService(s)
		planSrv = service.NewPlannerService(s, newTestPool())
		waveSrv = service.NewWaveService(s, nil)
		gapSrv = service.NewGapService(s)
		ctx = context.TODO()
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		project = newTestProject(ctx, ps, "planning")
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
	})

	AfterEach(func() {
		deleteProjects(ctx, ps)
	})

	Context("passes", func() {
		It("runs the whole chain into waves", func() {
			passes, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			Expect(passes).To(HaveLen(4))
			for _, p := range passes {
				Expect(p.Status).To(Equal(model.PassStatusCompleted))
				Expect(p.FinishedAt).NotTo(BeNil())
			}

			vms, _, err := inv.ListVMs(ctx, project.ID, testOwner, service.VMFilter{})
			Expect(err).To(BeNil())
			for _, vm := range vms {
				Expect(vm.RiskCategory).NotTo(BeEmpty())
				Expect(vm.MigrationMode).NotTo(BeEmpty())
				Expect(vm.TotalHours).To(BeNumerically(">", 0))
				Expect(vm.CohortKey).NotTo(BeEmpty())
				Expect(vm.WaveID).NotTo(BeNil())
			}

			waves, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())
			Expect(waves).NotTo(BeEmpty())
			members := 0
			for i, w := range waves {
				Expect(w.Status).To(Equal(model.WaveStatusPlanned))
				Expect(w.Sequence).To(Equal(i + 1))
				members += len(w.MemberKeys())
			}
			Expect(members).To(Equal(3))

			p, err := ps.GetProject(ctx, project.ID, testOwner)
			Expect(err).To(BeNil())
			Expect(p.Status).To(Equal(model.ProjectStatusPlanned))

			recorded, err := planSrv.ListPasses(ctx, project.ID, model.PassKindSchedule)
			Expect(err).To(BeNil())
			Expect(recorded).To(HaveLen(1))
		})

		It("schedules a dependency no later than its dependent", func() {
			_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())

			web, err := inv.GetVM(ctx, project.ID, testOwner, "fin-web")
			Expect(err).To(BeNil())
			db, err := inv.GetVM(ctx, project.ID, testOwner, "fin-db")
			Expect(err).To(BeNil())

			webWave, err := waveSrv.GetWave(ctx, project.ID, testOwner, *web.WaveID)
			Expect(err).To(BeNil())
			dbWave, err := waveSrv.GetWave(ctx, project.ID, testOwner, *db.WaveID)
			Expect(err).To(BeNil())
			Expect(dbWave.Sequence).To(BeNumerically("<=", webWave.Sequence))
		})

		It("keeps the same waves when the plan does not change", func() {
			_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			first, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())
			before, _, err := inv.ListVMs(ctx, project.ID, testOwner, service.VMFilter{})
			Expect(err).To(BeNil())

			_, err = planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			second, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())
			after, _, err := inv.ListVMs(ctx, project.ID, testOwner, service.VMFilter{})
			Expect(err).To(BeNil())

			Expect(second).To(HaveLen(len(first)))
			for i := range first {
				Expect(second[i].ID).To(Equal(first[i].ID))
				Expect(second[i].PassID).To(Equal(first[i].PassID))
				Expect(second[i].Status).To(Equal(first[i].Status))
				Expect(second[i].MemberKeys()).To(Equal(first[i].MemberKeys()))
			}

			placement := make(map[string]model.VM, len(before))
			for _, vm := range before {
				placement[vm.Key] = vm
			}
			Expect(after).To(HaveLen(len(before)))
			for _, vm := range after {
				Expect(vm.WaveID).To(Equal(placement[vm.Key].WaveID))
				Expect(vm.WaveOrder).To(Equal(placement[vm.Key].WaveOrder))
			}
		})

		It("defers the dependents of a vm whose estimate fails after grouping", func() {
			_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())

			_, err = inv.ImportInventory(ctx, project.ID, testOwner, inventory.Inventory{
				VMs: []planner.VM{testVM("fin-db", "fin", 0)},
			})
			Expect(err).To(BeNil())
			_, err = planSrv.Estimate(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())

			pass, err := planSrv.Schedule(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			Expect(pass.Failures).NotTo(BeNil())
			stages := make(map[string]planner.Stage)
			for _, f := range pass.Failures.Data {
				stages[f.Key] = f.Stage
			}
			Expect(stages).To(HaveKeyWithValue("fin-db", planner.StageEstimate))
			Expect(stages).To(HaveKeyWithValue("fin-web", planner.StageGroup))
			Expect(stages).NotTo(HaveKey("hr-app"))

			db, err := inv.GetVM(ctx, project.ID, testOwner, "fin-db")
			Expect(err).To(BeNil())
			Expect(db.ErrorStage).To(Equal(string(planner.StageEstimate)))
			Expect(db.WaveID).To(BeNil())

			web, err := inv.GetVM(ctx, project.ID, testOwner, "fin-web")
			Expect(err).To(BeNil())
			Expect(web.ErrorStage).To(Equal(string(planner.StageGroup)))
			Expect(web.ErrorReason).To(ContainSubstring("fin-db"))
			Expect(web.WaveID).To(BeNil())

			hr, err := inv.GetVM(ctx, project.ID, testOwner, "hr-app")
			Expect(err).To(BeNil())
			Expect(hr.WaveID).NotTo(BeNil())
		})

		It("holds a wave in planned until a readiness check has completed", func() {
			_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			waves, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())
			Expect(waves).NotTo(BeEmpty())

			_, err = waveSrv.TransitionWave(ctx, project.ID, testOwner, waves[0].ID, model.WaveStatusPreChecksPassed)
			var unresolved *service.ErrGapsUnresolved
			Expect(err).To(BeAssignableToTypeOf(unresolved))
			Expect(err.Error()).To(ContainSubstring("no readiness check"))

			wave, err := waveSrv.GetWave(ctx, project.ID, testOwner, waves[0].ID)
			Expect(err).To(BeNil())
			Expect(wave.Status).To(Equal(model.WaveStatusPlanned))
		})

		It("records a failed pass without an active risk configuration", func() {
			bare, err := ps.CreateProject(ctx, mappers.ProjectCreateForm{Name: "bare", Owner: testOwner})
			Expect(err).To(BeNil())

			pass, err := planSrv.Classify(ctx, bare.ID, service.PassOptions{})
			Expect(err).NotTo(BeNil())
			var missing *service.ErrMissingRiskConfig
			Expect(err).To(BeAssignableToTypeOf(missing))
			Expect(pass).NotTo(BeNil())
			Expect(pass.Status).To(Equal(model.PassStatusFailed))

			stored, err := planSrv.GetPass(ctx, bare.ID, pass.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.PassStatusFailed))
			Expect(stored.Error).NotTo(BeEmpty())
		})

		It("reports unclassified vms as estimate failures", func() {
			pass, err := planSrv.Estimate(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			Expect(pass.Failures).NotTo(BeNil())
			Expect(pass.Failures.Data).To(HaveLen(3))
			Expect(pass.Failures.Data[0].Stage).To(Equal(planner.StageClassify))
		})

		It("fails the readiness check without a destination snapshot", func() {
			_, err := planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{})
			Expect(err).NotTo(BeNil())
			var validation *service.ErrValidation
			Expect(err).To(BeAssignableToTypeOf(validation))
		})
	})

	Context("readiness gates", func() {
		BeforeEach(func() {
			_, err := planSrv.RunAll(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
			_, err = gapSrv.UploadDestinationSnapshot(ctx, project.ID, testOwner, readiness.Snapshot{
				Domains:  []string{"corp"},
				Projects: []readiness.Project{{Name: "hr", Domain: "corp"}},
				Networks: []string{"provider-net"},
			})
			Expect(err).To(BeNil())
			_, err = planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())
		})

		It("reports the missing domain of a tenant", func() {
			gaps, err := gapSrv.ListGaps(ctx, project.ID, testOwner, service.GapFilter{Scope: "fin"})
			Expect(err).To(BeNil())

			var types []string
			for _, g := range gaps {
				types = append(types, g.Type)
			}
			Expect(types).To(ContainElement(string(readiness.GapMissingDomain)))
		})

		It("blocks a wave until its critical gaps are resolved", func() {
			web, err := inv.GetVM(ctx, project.ID, testOwner, "fin-web")
			Expect(err).To(BeNil())

			_, err = waveSrv.TransitionWave(ctx, project.ID, testOwner, *web.WaveID, model.WaveStatusPreChecksPassed)
			Expect(err).NotTo(BeNil())
			unresolved, ok := err.(*service.ErrGapsUnresolved)
			Expect(ok).To(BeTrue())
			Expect(unresolved.Gaps).NotTo(BeEmpty())

			open, err := gapSrv.ListGaps(ctx, project.ID, testOwner, service.GapFilter{Status: string(readiness.StatusOpen)})
			Expect(err).To(BeNil())
			for _, g := range open {
				_, err := gapSrv.ResolveGap(ctx, project.ID, testOwner, g.ID, service.GapResolution{
					Status: string(readiness.StatusOverridden),
					By:     testOwner,
					Note:   "handled by the cloud team",
				})
				Expect(err).To(BeNil())
			}

			wave, err := waveSrv.TransitionWave(ctx, project.ID, testOwner, *web.WaveID, model.WaveStatusPreChecksPassed)
			Expect(err).To(BeNil())
			Expect(wave.Status).To(Equal(model.WaveStatusPreChecksPassed))
		})

		It("keeps operator decisions across readiness passes", func() {
			gaps, err := gapSrv.ListGaps(ctx, project.ID, testOwner, service.GapFilter{Scope: "fin"})
			Expect(err).To(BeNil())
			Expect(gaps).NotTo(BeEmpty())

			_, err = gapSrv.ResolveGap(ctx, project.ID, testOwner, gaps[0].ID, service.GapResolution{
				Status: string(readiness.StatusOverridden),
				By:     testOwner,
			})
			Expect(err).To(BeNil())

			_, err = planSrv.CheckReadiness(ctx, project.ID, service.PassOptions{})
			Expect(err).To(BeNil())

			after, err := gapSrv.ListGaps(ctx, project.ID, testOwner, service.GapFilter{Scope: "fin"})
			Expect(err).To(BeNil())
			found := false
			for _, g := range after {
				if g.ID == gaps[0].ID || (g.Type == gaps[0].Type && g.Resource == gaps[0].Resource) {
					found = true
					Expect(g.Status).To(Equal(string(readiness.StatusOverridden)))
					Expect(g.ResolvedBy).To(Equal(testOwner))
				}
			}
			Expect(found).To(BeTrue())
		})

		It("requires the operator name to resolve a gap", func() {
			gaps, err := gapSrv.ListGaps(ctx, project.ID, testOwner, service.GapFilter{})
			Expect(err).To(BeNil())
			Expect(gaps).NotTo(BeEmpty())

			_, err = gapSrv.ResolveGap(ctx, project.ID, testOwner, gaps[0].ID, service.GapResolution{Status: string(readiness.StatusResolved)})
			var validation *service.ErrValidation
			Expect(err).To(BeAssignableToTypeOf(validation))
		})

		It("rejects a transition outside the lifecycle", func() {
			waves, err := waveSrv.ListWaves(ctx, project.ID, testOwner, "")
			Expect(err).To(BeNil())

			_, err = waveSrv.TransitionWave(ctx, project.ID, testOwner, waves[0].ID, model.WaveStatusComplete)
			var transition *service.ErrInvalidTransition
			Expect(err).To(BeAssignableToTypeOf(transition))
		})
	})
})
