package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

const notClassifiedReason = "not classified, run the classify pass first"

func (s *PlannerService) classify(ctx context.Context, project *model.Project, pass *model.Pass, opts PassOptions) (passResult, error) {
	if project.ActiveRiskConfigID == nil {
		return passResult{}, NewErrMissingRiskConfig(project.ID)
	}
	rc, err := s.store.RiskConfig().Get(ctx, *project.ActiveRiskConfigID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return passResult{}, NewErrMissingRiskConfig(project.ID)
		}
		return passResult{}, fmt.Errorf("failed to get risk configuration: %w", err)
	}
	cls, err := classifier.New(rc.Rules.Data)
	if err != nil {
		return passResult{}, &ErrValidation{err}
	}

	rows, err := s.includedVMs(ctx, project.ID)
	if err != nil {
		return passResult{}, err
	}
	vms := make([]planner.VM, len(rows))
	for i := range rows {
		if opts.IgnoreOverrides {
			clearOverrides(&rows[i])
		}
		vms[i] = mappers.PlannerVM(rows[i])
	}

	results, err := planner.Classify(ctx, s.pool, cls, vms)
	if err != nil {
		return passResult{}, err
	}
	for i := range rows {
		mappers.ApplyClassification(&rows[i], rc.ID, results[i])
		rows[i].ErrorStage = ""
		rows[i].ErrorReason = ""
	}

	columns := append([]string{}, store.ClassificationColumns...)
	if opts.IgnoreOverrides {
		columns = append(columns, store.OverrideColumns...)
	}

	var prev string
	err = s.commit(ctx, project.ID, func(ctx context.Context) error {
		if err := s.store.VM().UpdateColumns(ctx, rows, columns...); err != nil {
			return fmt.Errorf("failed to write classification: %w", err)
		}
		if err := s.store.RiskConfig().Lock(ctx, rc.ID); err != nil {
			return fmt.Errorf("failed to lock risk configuration: %w", err)
		}
		prev, err = s.advance(ctx, project, model.ProjectStatusAssessment, model.ProjectStatusDraft)
		return err
	})
	if err != nil {
		return passResult{}, err
	}
	if prev != "" {
		emitProject(ctx, s.producer, *project, prev)
	}
	return passResult{vms: len(rows)}, nil
}

// clearOverrides drops the operator overrides of a VM, the exclusion flag aside.
func clearOverrides(vm *model.VM) {
	vm.ManualModeOverride = nil
	vm.Priority = 0
	vm.PinnedWave = 0
	vm.PinnedCohort = ""
}

func (s *PlannerService) estimate(ctx context.Context, project *model.Project, _ *model.Pass, _ PassOptions) (passResult, error) {
	settings, err := projectSettings(project)
	if err != nil {
		return passResult{}, err
	}
	rows, err := s.includedVMs(ctx, project.ID)
	if err != nil {
		return passResult{}, err
	}

	var (
		vms      []planner.VM
		failures []planner.Failure
	)
	index := make(map[string]int, len(rows))
	modes := make(map[string]classifier.Mode, len(rows))
	for i, row := range rows {
		index[row.Key] = i
		if !row.Classified() {
			mappers.ApplyEstimate(&rows[i], planner.Estimate{})
			rows[i].ErrorStage = string(planner.StageClassify)
			rows[i].ErrorReason = notClassifiedReason
			failures = append(failures, planner.Failure{Key: row.Key, Stage: planner.StageClassify, Reason: notClassifiedReason})
			continue
		}
		vms = append(vms, mappers.PlannerVM(row))
		modes[row.Key] = classifier.Mode(row.MigrationMode)
	}

	estimates, err := planner.EstimateAll(ctx, s.pool, planner.NewEstimator(settings), vms, modes)
	if err != nil {
		return passResult{}, err
	}
	for _, est := range estimates {
		row := &rows[index[est.Key]]
		if est.Err == nil {
			mappers.ApplyEstimate(row, est)
			row.ErrorStage = ""
			row.ErrorReason = ""
			continue
		}
		reason := est.Err.Error()
		if est.Underflow() {
			c := mappers.Classification(*row)
			planner.FlagUnderflow(&c, est.Err)
			mappers.ApplyClassification(row, *row.RiskConfigID, c)
			reason = planner.UnderflowReason(est.Err)
		}
		mappers.ApplyEstimate(row, planner.Estimate{})
		row.ErrorStage = string(planner.StageEstimate)
		row.ErrorReason = reason
		failures = append(failures, planner.Failure{Key: est.Key, Stage: planner.StageEstimate, Reason: reason})
	}

	err = s.commit(ctx, project.ID, func(ctx context.Context) error {
		if err := s.store.VM().UpdateColumns(ctx, rows, store.EstimationColumns...); err != nil {
			return fmt.Errorf("failed to write estimates: %w", err)
		}
		return nil
	})
	if err != nil {
		return passResult{failures: failures}, err
	}
	return passResult{vms: len(rows), failures: failures}, nil
}

func (s *PlannerService) group(ctx context.Context, project *model.Project, _ *model.Pass, _ PassOptions) (passResult, error) {
	settings, err := projectSettings(project)
	if err != nil {
		return passResult{}, err
	}
	rows, err := s.includedVMs(ctx, project.ID)
	if err != nil {
		return passResult{}, err
	}
	tenantRows, err := s.store.Tenant().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list tenants: %w", err)
	}
	cohortRows, err := s.store.Cohort().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list cohorts: %w", err)
	}
	deps, err := s.store.Dependency().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list dependencies: %w", err)
	}

	in := planner.GroupInput{Detect: settings.DetectOptions()}
	failed := make(map[string]string)
	var (
		candidates []planner.VM
		failures   []planner.Failure
	)
	for _, row := range rows {
		vm := mappers.PlannerVM(row)
		// Detected tenants are derived again on every run.
		if row.TenantSource == model.TenantSourceDetected {
			vm.Tenant = ""
		}
		in.VMs = append(in.VMs, vm)
		switch row.ErrorStage {
		case string(planner.StageClassify), string(planner.StageEstimate):
			failed[row.Key] = row.ErrorReason
			failures = append(failures, planner.Failure{Key: row.Key, Stage: planner.Stage(row.ErrorStage), Reason: row.ErrorReason})
		default:
			candidates = append(candidates, vm)
		}
	}
	for _, t := range tenantRows {
		in.Tenants = append(in.Tenants, mappers.PlannerTenant(t))
	}
	for _, c := range cohortRows {
		if !c.Auto {
			in.Cohorts = append(in.Cohorts, mappers.PlannerCohort(c))
		}
	}
	for _, d := range deps {
		in.Dependencies = append(in.Dependencies, mappers.Edge(d))
	}

	res, err := planner.Group(in)
	if err != nil {
		var cycle *grouping.CycleError
		if errors.As(err, &cycle) {
			return passResult{}, NewErrCycle(cycle)
		}
		return passResult{}, &ErrValidation{err}
	}

	deferred := planner.Deferred(res.Graph, failed, candidates)
	deferredBy := make(map[string]planner.Failure, len(deferred))
	for _, f := range deferred {
		deferredBy[f.Key] = f
	}
	failures = append(failures, deferred...)

	for i := range rows {
		row := &rows[i]
		if row.TenantSource != model.TenantSourceInventory {
			row.TenantKey = res.TenantOf[row.Key]
			row.TenantSource = ""
			if row.TenantKey != "" {
				row.TenantSource = model.TenantSourceDetected
			}
		}
		row.CohortKey = res.CohortOf[row.Key]
		if f, ok := deferredBy[row.Key]; ok {
			row.ErrorStage = string(f.Stage)
			row.ErrorReason = f.Reason
		} else if row.ErrorStage == string(planner.StageGroup) {
			row.ErrorStage = ""
			row.ErrorReason = ""
		}
	}

	err = s.commit(ctx, project.ID, func(ctx context.Context) error {
		if err := s.writeTenants(ctx, project, tenantRows, res, rows); err != nil {
			return err
		}
		if err := s.writeAutoCohorts(ctx, project, cohortRows, res.Cohorts); err != nil {
			return err
		}
		if err := s.store.VM().UpdateColumns(ctx, rows, store.GroupColumns...); err != nil {
			return fmt.Errorf("failed to write grouping: %w", err)
		}
		return nil
	})
	if err != nil {
		return passResult{failures: failures}, err
	}
	return passResult{vms: len(rows), cohorts: len(res.Cohorts), failures: failures}, nil
}

// writeTenants creates the newly detected tenants, refreshes the aggregates of
// every tenant and drops detected tenants nobody belongs to anymore. Manual
// and confirmed tenants are never removed.
func (s *PlannerService) writeTenants(ctx context.Context, project *model.Project, existing model.TenantList, res *planner.GroupResult, rows model.VMList) error {
	known := make(map[string]model.Tenant, len(existing))
	for _, t := range existing {
		known[t.Key] = t
	}
	var created []model.Tenant
	detected := make(map[string]string, len(res.Detected))
	for _, t := range res.Detected {
		detected[t.Name] = string(t.Method)
		if _, ok := known[t.Name]; !ok {
			created = append(created, mappers.DetectedTenant(project.ID, t))
		}
	}
	if err := s.store.Tenant().Upsert(ctx, created); err != nil {
		return fmt.Errorf("failed to create detected tenants: %w", err)
	}

	tenants, err := s.store.Tenant().List(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	type totals struct {
		vms    int
		vcpu   int
		ramGB  float64
		diskGB float64
	}
	agg := make(map[string]*totals)
	for _, row := range rows {
		if row.TenantKey == "" {
			continue
		}
		t, ok := agg[row.TenantKey]
		if !ok {
			t = &totals{}
			agg[row.TenantKey] = t
		}
		t.vms++
		t.vcpu += row.VCPU
		t.ramGB += row.RAMGB
		t.diskGB += row.ProvisionedGB
	}

	var stale []string
	for i := range tenants {
		t := &tenants[i]
		a := agg[t.Key]
		if a == nil {
			a = &totals{}
		}
		if method, ok := detected[t.Key]; ok && t.Method != model.TenantMethodManual {
			t.Method = method
		}
		t.VMCount, t.VCPU, t.RAMGB, t.DiskGB = a.vms, a.vcpu, a.ramGB, a.diskGB
		if t.Method != model.TenantMethodManual && !t.Confirmed && a.vms == 0 {
			stale = append(stale, t.Key)
		}
	}
	if err := s.store.Tenant().UpdateAggregates(ctx, tenants); err != nil {
		return fmt.Errorf("failed to update tenant aggregates: %w", err)
	}
	if err := s.store.Tenant().Delete(ctx, project.ID, stale...); err != nil {
		return fmt.Errorf("failed to delete stale tenants: %w", err)
	}
	return nil
}

// writeAutoCohorts stores the automatic cohorts of the grouping and drops the
// automatic cohorts it no longer produced.
func (s *PlannerService) writeAutoCohorts(ctx context.Context, project *model.Project, existing model.CohortList, cohorts []planner.Cohort) error {
	known := make(map[string]model.Cohort, len(existing))
	for _, c := range existing {
		known[c.Key] = c
	}
	keep := make([]string, 0, len(cohorts))
	for _, c := range cohorts {
		if !c.Auto {
			continue
		}
		keep = append(keep, c.Key)
		row, ok := known[c.Key]
		switch {
		case !ok:
			if _, err := s.store.Cohort().Create(ctx, mappers.CohortFromPlanner(project.ID, c)); err != nil {
				return fmt.Errorf("failed to create cohort %s: %w", c.Key, err)
			}
		case row.Position != c.Order:
			row.Position = c.Order
			if _, err := s.store.Cohort().Update(ctx, row); err != nil {
				return fmt.Errorf("failed to update cohort %s: %w", c.Key, err)
			}
		}
	}
	if err := s.store.Cohort().DeleteAuto(ctx, project.ID, keep); err != nil {
		return fmt.Errorf("failed to delete stale cohorts: %w", err)
	}
	return nil
}
