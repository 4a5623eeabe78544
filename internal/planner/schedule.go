package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/estimation"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/scheduling"
)

// FlagUnderflow marks a VM whose throughput derated to nothing as RED and cold.
// A manual mode override stays effective.
func FlagUnderflow(c *Classification, err error) {
	term := "throughput"
	var uf *estimation.UnderflowError
	if errors.As(err, &uf) {
		term = uf.Term
	}
	reason := fmt.Sprintf("capacity_underflow: %s", term)
	c.Category = classifier.CategoryRed
	c.Reasons = appendOnce(c.Reasons, reason)
	c.ComputedMode = classifier.ModeCold
	c.ModeReasons = appendOnce(c.ModeReasons, reason)
	if c.ModeSource != classifier.ProvenanceManual {
		c.Mode = classifier.ModeCold
	}
}

func appendOnce(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// Deferred returns the candidates depending, directly or not, on a failed VM.
// The result is sorted by key.
func Deferred(g *grouping.Graph, failed map[string]string, candidates []VM) []Failure {
	isCandidate := make(map[string]bool, len(candidates))
	for _, vm := range candidates {
		isCandidate[vm.Key] = true
	}

	roots := make([]string, 0, len(failed))
	for k := range failed {
		roots = append(roots, k)
	}
	sort.Strings(roots)

	cause := make(map[string]string)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, user := range g.Dependents(k) {
			if _, seen := cause[user]; seen || failed[user] != "" {
				continue
			}
			cause[user] = k
			queue = append(queue, user)
		}
	}

	var out []Failure
	for k, dep := range cause {
		if !isCandidate[k] {
			continue
		}
		out = append(out, Failure{Key: k, Stage: StageGroup, Reason: fmt.Sprintf("depends on %s which cannot be scheduled", dep)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type ScheduleInput struct {
	VMs             []VM
	Classifications map[string]Classification
	Estimates       map[string]Estimate
	Group           *GroupResult
	// Frozen holds the executing or finished waves per cohort key.
	Frozen map[string][]scheduling.FrozenWave
}

// BuildCohorts turns the grouped VMs into scheduler cohorts. Cohorts without VMs
// or frozen waves are left out.
func BuildCohorts(in ScheduleInput) []scheduling.Cohort {
	items := make(map[string][]scheduling.Item)
	for _, vm := range in.VMs {
		ck, ok := in.Group.CohortOf[vm.Key]
		if !ok {
			continue
		}
		est := in.Estimates[vm.Key]
		items[ck] = append(items[ck], scheduling.Item{
			Key:           vm.Key,
			Name:          vm.Name,
			Priority:      vm.Priority,
			RiskScore:     in.Classifications[vm.Key].Score,
			DiskGB:        est.DataGB,
			Phase1Hours:   est.Phase1.Hours(),
			CutoverHours:  est.Cutover.Hours(),
			TotalHours:    est.Total.Hours(),
			EffectiveMBps: est.EffectiveMBps,
			Bottleneck:    est.Bottleneck,
			DependsOn:     in.Group.Graph.DependsOn(vm.Key),
			PinnedWave:    vm.PinnedWave,
		})
	}

	var out []scheduling.Cohort
	for _, c := range in.Group.Cohorts {
		if len(items[c.Key]) == 0 && len(in.Frozen[c.Key]) == 0 {
			continue
		}
		out = append(out, scheduling.Cohort{
			Key:                c.Key,
			Order:              c.Order,
			ConcurrencyCeiling: c.ConcurrencyCeiling,
			Items:              items[c.Key],
			Frozen:             in.Frozen[c.Key],
		})
	}
	return out
}

func Schedule(in ScheduleInput, s Settings) (*scheduling.Plan, error) {
	return scheduling.Schedule(BuildCohorts(in), s.ScheduleParams())
}
