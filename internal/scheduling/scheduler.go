package scheduling

import (
	"fmt"
	"sort"

	"github.com/kubev2v/wave-planner/internal/grouping"
)

// Schedule assigns every item of every cohort to exactly one wave.
// Cohorts are scheduled by ascending Order. A dependency on an item of a later
// cohort, or a pin that cannot be honoured, fails the whole call with an
// *OverconstrainedError. Dependencies on keys unknown to the schedule are ignored.
func Schedule(cohorts []Cohort, p Params) (*Plan, error) {
	sorted := make([]Cohort, len(cohorts))
	copy(sorted, cohorts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].Key < sorted[j].Key
	})

	cohortOf := make(map[string]int)
	totalItems := 0
	sumHours := 0.0
	timed := 0
	for ci, c := range sorted {
		for _, fw := range c.Frozen {
			for _, m := range fw.Members {
				cohortOf[m] = ci
			}
		}
		for _, it := range c.Items {
			if prev, dup := cohortOf[it.Key]; dup && prev != ci {
				return nil, fmt.Errorf("vm %s appears in more than one cohort", it.Key)
			}
			cohortOf[it.Key] = ci
			totalItems++
			if it.TotalHours > 0 {
				sumHours += it.TotalHours
				timed++
			}
		}
	}

	avg := 0.0
	if timed > 0 {
		avg = sumHours / float64(timed)
	}
	vmsPerDay := VMsPerDay(p, avg)
	days := WorkingDays(p)

	plan := &Plan{
		VMsPerDay:   vmsPerDay,
		WorkingDays: days,
		CapacityVMs: vmsPerDay * days,
		TotalVMs:    totalItems,
		Positions:   make(map[string]Position),
	}

	seq := 0
	for ci, c := range sorted {
		waves, err := scheduleCohort(ci, c, cohortOf, waveCapacity(vmsPerDay, c, p))
		if err != nil {
			return nil, err
		}
		for _, w := range waves {
			seq++
			w.Sequence = seq
			for i, m := range w.Members {
				plan.Positions[m] = Position{CohortKey: c.Key, WaveIndex: w.Index, Sequence: seq, Order: i}
			}
			plan.Waves = append(plan.Waves, w)
		}
	}
	return plan, nil
}

func scheduleCohort(ci int, c Cohort, cohortOf map[string]int, capacity int) ([]Wave, error) {
	byKey := make(map[string]Item, len(c.Items))
	keys := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		byKey[it.Key] = it
		keys = append(keys, it.Key)
	}
	sort.Strings(keys)

	placed := make(map[string]int)
	maxFrozen := 0
	frozen := make([]FrozenWave, len(c.Frozen))
	copy(frozen, c.Frozen)
	sort.Slice(frozen, func(i, j int) bool { return frozen[i].Index < frozen[j].Index })
	for _, fw := range frozen {
		for _, m := range fw.Members {
			placed[m] = fw.Index
		}
		if fw.Index > maxFrozen {
			maxFrozen = fw.Index
		}
	}

	less := func(a, b string) bool { return itemLess(byKey[a], byKey[b]) }

	pinned := make(map[int][]string)
	maxPinned := 0
	var auto []string
	for _, k := range keys {
		if _, isFrozen := placed[k]; isFrozen {
			continue
		}
		it := byKey[k]
		for _, dep := range it.DependsOn {
			if dc, ok := cohortOf[dep]; ok && dc > ci {
				return nil, &OverconstrainedError{VM: k, DependsOn: dep, Reason: "dependency is assigned to a later cohort"}
			}
		}
		if it.PinnedWave > 0 {
			if it.PinnedWave <= maxFrozen {
				return nil, &OverconstrainedError{VM: k, Reason: fmt.Sprintf("pinned to wave %d which is already executing or finished", it.PinnedWave)}
			}
			pinned[it.PinnedWave] = append(pinned[it.PinnedWave], k)
			if it.PinnedWave > maxPinned {
				maxPinned = it.PinnedWave
			}
			continue
		}
		auto = append(auto, k)
	}
	for w, ks := range pinned {
		sort.Slice(ks, func(i, j int) bool { return less(ks[i], ks[j]) })
		for _, k := range ks {
			placed[k] = w
		}
	}

	g := grouping.NewGraph()
	autoSet := make(map[string]struct{}, len(auto))
	for _, k := range auto {
		g.AddNode(k)
		autoSet[k] = struct{}{}
	}
	for _, k := range auto {
		for _, dep := range byKey[k].DependsOn {
			if _, ok := autoSet[dep]; ok {
				if err := g.AddEdge(k, dep); err != nil {
					return nil, err
				}
			}
		}
	}

	ready := func(k string, w int) bool {
		for _, dep := range byKey[k].DependsOn {
			if dc, ok := cohortOf[dep]; !ok || dc != ci {
				continue
			}
			dw, ok := placed[dep]
			if !ok || dw >= w {
				return false
			}
		}
		return true
	}

	members := make(map[int][]string)
	for w, ks := range pinned {
		members[w] = append(members[w], ks...)
	}

	remaining := g.TopologicalOrder(less)
	limit := maxFrozen + maxPinned + len(auto) + 1
	for w := maxFrozen + 1; len(remaining) > 0; w++ {
		if w > limit {
			return nil, &OverconstrainedError{VM: remaining[0], Reason: "no wave satisfies its dependencies"}
		}
		count := len(pinned[w])
		next := make([]string, 0, len(remaining))
		for _, k := range remaining {
			if count < capacity && ready(k, w) {
				placed[k] = w
				members[w] = append(members[w], k)
				count++
				continue
			}
			next = append(next, k)
		}
		remaining = next
	}

	for w, ks := range pinned {
		for _, k := range ks {
			for _, dep := range byKey[k].DependsOn {
				if dc, ok := cohortOf[dep]; !ok || dc != ci {
					continue
				}
				if placed[dep] >= w {
					return nil, &OverconstrainedError{VM: k, DependsOn: dep, Reason: fmt.Sprintf("pinned to wave %d but its dependency lands in wave %d", w, placed[dep])}
				}
			}
		}
	}

	waves := make([]Wave, 0, len(frozen)+len(members))
	for _, fw := range frozen {
		w := Wave{CohortKey: c.Key, Index: fw.Index, Members: append([]string(nil), fw.Members...), Frozen: true}
		aggregate(&w, byKey)
		waves = append(waves, w)
	}

	// Pinned indices are kept: a wave left empty in front of a pin leaves a gap
	// in the numbering rather than moving the pin forward.
	indices := make([]int, 0, len(members))
	for w, ks := range members {
		if len(ks) > 0 {
			indices = append(indices, w)
		}
	}
	sort.Ints(indices)
	for _, idx := range indices {
		w := Wave{CohortKey: c.Key, Index: idx, Members: members[idx]}
		aggregate(&w, byKey)
		waves = append(waves, w)
	}
	return waves, nil
}

// itemLess orders ready items: ascending priority, then risk score, name and key.
func itemLess(a, b Item) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.RiskScore != b.RiskScore {
		return a.RiskScore < b.RiskScore
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Key < b.Key
}

// aggregate fills the wave totals. VMs of a wave run concurrently, so phase
// durations are the maximum over members and the slowest member explains the bottleneck.
func aggregate(w *Wave, byKey map[string]Item) {
	var slowest *Item
	for _, k := range w.Members {
		it, ok := byKey[k]
		if !ok {
			continue
		}
		w.VMCount++
		w.DiskGB += it.DiskGB
		if it.Phase1Hours > w.Phase1Hours {
			w.Phase1Hours = it.Phase1Hours
		}
		if it.CutoverHours > w.CutoverHours {
			w.CutoverHours = it.CutoverHours
		}
		if slowest == nil || it.TotalHours > slowest.TotalHours {
			cp := it
			slowest = &cp
		}
	}
	if slowest == nil {
		return
	}
	w.TotalHours = slowest.TotalHours
	w.Bottleneck = slowest.Bottleneck
	w.BottleneckVM = slowest.Key
	name := slowest.Name
	if name == "" {
		name = slowest.Key
	}
	w.BottleneckExplanation = fmt.Sprintf("%s: %.1f MB/s (vm %s, %.2fh)", slowest.Bottleneck, slowest.EffectiveMBps, name, slowest.TotalHours)
}
