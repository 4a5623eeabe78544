package scheduling_test

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/kubev2v/wave-planner/internal/scheduling"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func items(n int) []scheduling.Item {
	out := make([]scheduling.Item, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scheduling.Item{
			Key:        fmt.Sprintf("vm-%02d", i),
			Name:       fmt.Sprintf("vm-%02d", i),
			RiskScore:  (i * 7) % 50,
			TotalHours: 1,
		})
	}
	return out
}

func sizes(plan *scheduling.Plan) []int {
	var out []int
	for _, w := range plan.Waves {
		out = append(out, len(w.Members))
	}
	return out
}

var _ = Describe("scheduler", func() {
	params := scheduling.Params{DurationDays: 30, WorkingHoursPerDay: 8, WorkingDaysPerWeek: 5, TargetVMsPerDay: 10, ConcurrencyCeiling: 16}

	Context("pacing", func() {
		It("splits 35 independent VMs into waves of 10,10,10,5 in priority then risk order", func() {
			cohort := scheduling.Cohort{Key: "c1", Order: 1, Items: items(35)}
			plan, err := scheduling.Schedule([]scheduling.Cohort{cohort}, params)
			Expect(err).To(BeNil())
			Expect(sizes(plan)).To(Equal([]int{10, 10, 10, 5}))

			var risks []int
			for _, w := range plan.Waves {
				for _, m := range w.Members {
					for _, it := range cohort.Items {
						if it.Key == m {
							risks = append(risks, it.RiskScore)
						}
					}
				}
			}
			Expect(risks).To(HaveLen(35))
			for i := 1; i < len(risks); i++ {
				Expect(risks[i]).To(BeNumerically(">=", risks[i-1]))
			}
		})

		It("lower priority values are scheduled first", func() {
			its := items(3)
			its[0].Priority = 5
			its[2].Priority = -1
			p := params
			p.TargetVMsPerDay = 1
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, p)
			Expect(err).To(BeNil())
			Expect(plan.Waves[0].Members).To(Equal([]string{"vm-02"}))
			Expect(plan.Waves[2].Members).To(Equal([]string{"vm-00"}))
		})

		It("caps waves at the cohort concurrency ceiling", func() {
			cohort := scheduling.Cohort{Key: "c1", ConcurrencyCeiling: 4, Items: items(10)}
			plan, err := scheduling.Schedule([]scheduling.Cohort{cohort}, params)
			Expect(err).To(BeNil())
			Expect(sizes(plan)).To(Equal([]int{4, 4, 2}))
		})

		It("derives VMs per day from the working hours budget", func() {
			p := scheduling.Params{DurationDays: 70, WorkingHoursPerDay: 8, WorkingDaysPerWeek: 5, ConcurrencyCeiling: 16}
			Expect(scheduling.WorkingDays(p)).To(Equal(50))
			Expect(scheduling.VMsPerDay(p, 4)).To(Equal(32))
			Expect(scheduling.VMsPerDay(p, 1000)).To(Equal(1))
			Expect(scheduling.VMsPerDay(p, 0)).To(Equal(16))
		})

		It("reports an overbooked window", func() {
			p := params
			p.DurationDays = 7
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: items(60)}}, p)
			Expect(err).To(BeNil())
			Expect(plan.CapacityVMs).To(Equal(50))
			Expect(plan.Overbooked()).To(BeTrue())
		})
	})

	Context("dependencies", func() {
		It("puts a dependent VM in a strictly later wave", func() {
			its := items(4)
			its[0].DependsOn = []string{"vm-03"}
			its[1].DependsOn = []string{"vm-00"}
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())

			pos := plan.Positions
			Expect(pos["vm-00"].Sequence).To(BeNumerically(">", pos["vm-03"].Sequence))
			Expect(pos["vm-01"].Sequence).To(BeNumerically(">", pos["vm-00"].Sequence))
			Expect(plan.Waves[0].Members).To(ConsistOf("vm-02", "vm-03"))
		})

		It("accepts a dependency on an earlier cohort", func() {
			first := items(1)
			second := []scheduling.Item{{Key: "app", Name: "app", DependsOn: []string{"vm-00"}, TotalHours: 1}}
			plan, err := scheduling.Schedule([]scheduling.Cohort{
				{Key: "late", Order: 2, Items: second},
				{Key: "early", Order: 1, Items: first},
			}, params)
			Expect(err).To(BeNil())
			Expect(plan.Positions["app"].Sequence).To(BeNumerically(">", plan.Positions["vm-00"].Sequence))
			Expect(plan.Waves[0].CohortKey).To(Equal("early"))
		})

		It("fails on a dependency assigned to a later cohort", func() {
			first := []scheduling.Item{{Key: "app", Name: "app", DependsOn: []string{"db"}}}
			second := []scheduling.Item{{Key: "db", Name: "db"}}
			_, err := scheduling.Schedule([]scheduling.Cohort{
				{Key: "early", Order: 1, Items: first},
				{Key: "late", Order: 2, Items: second},
			}, params)
			var over *scheduling.OverconstrainedError
			Expect(errors.As(err, &over)).To(BeTrue())
			Expect(over.VM).To(Equal("app"))
			Expect(over.DependsOn).To(Equal("db"))
		})

		It("ignores dependencies on VMs outside the schedule", func() {
			its := items(2)
			its[1].DependsOn = []string{"excluded"}
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())
			Expect(sizes(plan)).To(Equal([]int{2}))
		})
	})

	Context("overrides", func() {
		It("places pinned VMs first and counts them against the wave", func() {
			its := items(12)
			its[11].PinnedWave = 1
			its[11].RiskScore = 99
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())
			Expect(sizes(plan)).To(Equal([]int{10, 2}))
			Expect(plan.Waves[0].Members[0]).To(Equal("vm-11"))
		})

		It("fails when a pinned VM lands before its dependency", func() {
			its := items(2)
			its[0].PinnedWave = 1
			its[0].DependsOn = []string{"vm-01"}
			_, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			var over *scheduling.OverconstrainedError
			Expect(errors.As(err, &over)).To(BeTrue())
			Expect(over.VM).To(Equal("vm-00"))
			Expect(over.DependsOn).To(Equal("vm-01"))
		})

		It("keeps the pinned wave index when fewer waves are filled", func() {
			its := items(3)
			its[2].PinnedWave = 3
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())
			Expect(plan.Waves).To(HaveLen(2))
			Expect(plan.Waves[0].Index).To(Equal(1))
			Expect(plan.Waves[0].Members).To(Equal([]string{"vm-00", "vm-01"}))
			Expect(plan.Waves[1].Index).To(Equal(3))
			Expect(plan.Waves[1].Sequence).To(Equal(2))
			Expect(plan.Positions["vm-02"].WaveIndex).To(Equal(3))
		})

		It("schedules dependents of a pinned VM after it", func() {
			its := items(3)
			its[0].PinnedWave = 2
			its[1].DependsOn = []string{"vm-00"}
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())
			Expect(plan.Positions["vm-01"].WaveIndex).To(BeNumerically(">", plan.Positions["vm-00"].WaveIndex))
		})
	})

	Context("frozen waves", func() {
		It("keeps executing waves and numbers new waves after them", func() {
			its := items(5)
			cohort := scheduling.Cohort{
				Key:    "c1",
				Items:  its,
				Frozen: []scheduling.FrozenWave{{Index: 1, Members: []string{"vm-04", "vm-00"}}},
			}
			plan, err := scheduling.Schedule([]scheduling.Cohort{cohort}, params)
			Expect(err).To(BeNil())
			Expect(plan.Waves).To(HaveLen(2))
			Expect(plan.Waves[0].Frozen).To(BeTrue())
			Expect(plan.Waves[0].Members).To(Equal([]string{"vm-04", "vm-00"}))
			Expect(plan.Waves[1].Index).To(Equal(2))
			Expect(plan.Waves[1].Members).To(ConsistOf("vm-01", "vm-02", "vm-03"))
		})

		It("rejects a pin to a frozen wave", func() {
			its := items(2)
			its[1].PinnedWave = 1
			cohort := scheduling.Cohort{Key: "c1", Items: its, Frozen: []scheduling.FrozenWave{{Index: 1, Members: []string{"vm-00"}}}}
			_, err := scheduling.Schedule([]scheduling.Cohort{cohort}, params)
			var over *scheduling.OverconstrainedError
			Expect(errors.As(err, &over)).To(BeTrue())
		})
	})

	Context("aggregates", func() {
		It("records the slowest VM bottleneck", func() {
			its := []scheduling.Item{
				{Key: "a", Name: "web-01", DiskGB: 100, Phase1Hours: 1, CutoverHours: 0.1, TotalHours: 1.1, Bottleneck: "storage_write", EffectiveMBps: 500},
				{Key: "b", Name: "db-01", DiskGB: 2000, Phase1Hours: 4.55, CutoverHours: 0.2, TotalHours: 4.75, Bottleneck: "agent", EffectiveMBps: 150},
			}
			plan, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
			Expect(err).To(BeNil())
			w := plan.Waves[0]
			Expect(w.VMCount).To(Equal(2))
			Expect(w.DiskGB).To(Equal(2100.0))
			Expect(w.Phase1Hours).To(Equal(4.55))
			Expect(w.CutoverHours).To(Equal(0.2))
			Expect(w.Bottleneck).To(Equal("agent"))
			Expect(w.BottleneckVM).To(Equal("b"))
			Expect(w.BottleneckExplanation).To(Equal("agent: 150.0 MB/s (vm db-01, 4.75h)"))
		})
	})

	It("is reproducible for shuffled input", func() {
		its := items(30)
		its[5].DependsOn = []string{"vm-20"}
		its[7].DependsOn = []string{"vm-05"}
		first, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: its}}, params)
		Expect(err).To(BeNil())

		r := rand.New(rand.NewSource(42))
		shuffled := append([]scheduling.Item(nil), its...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		second, err := scheduling.Schedule([]scheduling.Cohort{{Key: "c1", Items: shuffled}}, params)
		Expect(err).To(BeNil())
		Expect(second.Waves).To(Equal(first.Waves))
	})
})
