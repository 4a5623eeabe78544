package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/scheduling"
	"github.com/kubev2v/wave-planner/pkg/worker"
)

type Input struct {
	Settings        Settings
	RiskConfig      classifier.Config
	VMs             []VM
	Tenants         []Tenant
	Cohorts         []Cohort
	Dependencies    []grouping.Edge
	NetworkMappings []NetworkMapping
	Frozen          map[string][]scheduling.FrozenWave
	// Snapshot is the destination inventory, nil to skip the readiness check.
	Snapshot *readiness.Snapshot
	GapRules readiness.Rules
}

type Result struct {
	Classifications []Classification
	Estimates       []Estimate
	Excluded        []string
	Failures        []Failure
	Group           *GroupResult
	Plan            *scheduling.Plan
	Gaps            []readiness.Gap
}

// Run chains classify, estimate, group, schedule and readiness. Per-VM failures
// are collected in Result.Failures and keep the VM out of the schedule; errors
// of the cross-VM passes abort the run.
func Run(ctx context.Context, pool *worker.Pool, in Input) (*Result, error) {
	if err := in.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	cls, err := classifier.New(in.RiskConfig)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var active []VM
	for _, vm := range in.VMs {
		if vm.Exclude {
			res.Excluded = append(res.Excluded, vm.Key)
			continue
		}
		active = append(active, vm)
	}

	res.Classifications, err = Classify(ctx, pool, cls, active)
	if err != nil {
		return nil, err
	}
	classes := make(map[string]Classification, len(res.Classifications))
	modes := make(map[string]classifier.Mode, len(res.Classifications))
	for _, c := range res.Classifications {
		classes[c.Key] = c
		modes[c.Key] = c.Mode
	}

	res.Estimates, err = EstimateAll(ctx, pool, NewEstimator(in.Settings), active, modes)
	if err != nil {
		return nil, err
	}
	estimates := make(map[string]Estimate, len(res.Estimates))
	failed := make(map[string]string)
	for i, e := range res.Estimates {
		estimates[e.Key] = e
		if e.Err == nil {
			continue
		}
		reason := e.Err.Error()
		if e.Underflow() {
			c := classes[e.Key]
			FlagUnderflow(&c, e.Err)
			classes[e.Key] = c
			res.Classifications[i] = c
			reason = UnderflowReason(e.Err)
		}
		failed[e.Key] = reason
		res.Failures = append(res.Failures, Failure{Key: e.Key, Stage: StageEstimate, Reason: reason})
	}

	res.Group, err = Group(GroupInput{
		VMs:          active,
		Tenants:      in.Tenants,
		Cohorts:      in.Cohorts,
		Dependencies: in.Dependencies,
		Detect:       in.Settings.DetectOptions(),
	})
	if err != nil {
		return nil, err
	}

	var candidates []VM
	for _, vm := range active {
		if _, ok := failed[vm.Key]; !ok {
			candidates = append(candidates, vm)
		}
	}
	deferred := Deferred(res.Group.Graph, failed, candidates)
	res.Failures = append(res.Failures, deferred...)
	skip := make(map[string]bool, len(deferred))
	for _, f := range deferred {
		skip[f.Key] = true
	}
	var eligible []VM
	for _, vm := range candidates {
		if !skip[vm.Key] {
			eligible = append(eligible, vm)
		}
	}
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Key < res.Failures[j].Key })

	res.Plan, err = Schedule(ScheduleInput{
		VMs:             eligible,
		Classifications: classes,
		Estimates:       estimates,
		Group:           res.Group,
		Frozen:          in.Frozen,
	}, in.Settings)
	if err != nil {
		return nil, err
	}

	if in.Snapshot != nil {
		rules := in.GapRules
		if rules == nil {
			rules = in.Settings.GapRules
		}
		checker, err := readiness.NewChecker(rules)
		if err != nil {
			return nil, err
		}
		reqs := Requirements(eligible, allTenants(in.Tenants, res.Group.Detected), res.Group.TenantOf, in.NetworkMappings, in.Settings)
		res.Gaps = checker.Check(reqs, *in.Snapshot)
	}
	return res, nil
}

// allTenants appends the detected tenants, which carry no target mapping yet.
func allTenants(tenants []Tenant, detected []grouping.Tenant) []Tenant {
	out := append([]Tenant(nil), tenants...)
	for _, d := range detected {
		out = append(out, Tenant{Key: d.Name, Name: d.Name})
	}
	return out
}
