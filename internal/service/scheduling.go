package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/scheduling"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/metrics"
)

const destinationSourceOpenStack = "openstack"

func (s *PlannerService) schedule(ctx context.Context, project *model.Project, pass *model.Pass, opts PassOptions) (passResult, error) {
	settings, err := projectSettings(project)
	if err != nil {
		return passResult{}, err
	}
	rows, err := s.includedVMs(ctx, project.ID)
	if err != nil {
		return passResult{}, err
	}
	cohortRows, err := s.store.Cohort().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list cohorts: %w", err)
	}
	if opts.CohortKey != "" && !hasCohort(cohortRows, opts.CohortKey) {
		return passResult{}, NewErrResourceKeyNotFound(opts.CohortKey, "cohort")
	}
	deps, err := s.store.Dependency().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list dependencies: %w", err)
	}
	waves, err := s.store.Wave().List(ctx, store.NewWaveQueryFilter().ByProject(project.ID))
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list waves: %w", err)
	}

	frozen := make(map[string][]scheduling.FrozenWave)
	frozenMember := make(map[string]bool)
	for _, w := range waves {
		if !w.Frozen() {
			continue
		}
		frozen[w.CohortKey] = append(frozen[w.CohortKey], scheduling.FrozenWave{Index: w.Index, Members: w.MemberKeys()})
		for _, k := range w.MemberKeys() {
			frozenMember[k] = true
		}
	}

	graph := grouping.NewGraph()
	for _, row := range rows {
		graph.AddNode(row.Key)
	}
	for _, d := range deps {
		if err := graph.AddEdge(d.VMKey, d.DependsOnKey); err != nil {
			var cycle *grouping.CycleError
			if errors.As(err, &cycle) {
				return passResult{}, NewErrCycle(cycle)
			}
			return passResult{}, err
		}
	}

	// Dependents of VMs that failed classification or estimation are deferred
	// again here, since an estimate pass may have run after the last group pass.
	failed := make(map[string]string)
	var candidates []planner.VM
	for _, row := range rows {
		if frozenMember[row.Key] {
			continue
		}
		switch row.ErrorStage {
		case string(planner.StageClassify), string(planner.StageEstimate):
			failed[row.Key] = row.ErrorReason
		default:
			candidates = append(candidates, mappers.PlannerVM(row))
		}
	}
	deferred := planner.Deferred(graph, failed, candidates)
	deferredBy := make(map[string]planner.Failure, len(deferred))
	for _, f := range deferred {
		deferredBy[f.Key] = f
	}

	in := planner.ScheduleInput{
		Classifications: make(map[string]planner.Classification),
		Estimates:       make(map[string]planner.Estimate),
		Group:           &planner.GroupResult{Graph: graph, CohortOf: make(map[string]string)},
		Frozen:          frozen,
	}
	for _, row := range rows {
		if frozenMember[row.Key] || row.ErrorStage == string(planner.StageClassify) || row.ErrorStage == string(planner.StageEstimate) {
			continue
		}
		if _, ok := deferredBy[row.Key]; ok {
			continue
		}
		if row.CohortKey == "" {
			return passResult{}, NewErrValidation("vm %s has no cohort, run the group pass first", row.Key)
		}
		if row.Bottleneck == "" {
			return passResult{}, NewErrValidation("vm %s has no estimate, run the estimate pass first", row.Key)
		}
		in.VMs = append(in.VMs, mappers.PlannerVM(row))
		in.Classifications[row.Key] = mappers.Classification(row)
		in.Estimates[row.Key] = mappers.StoredEstimate(row)
		in.Group.CohortOf[row.Key] = row.CohortKey
	}
	in.Group.Cohorts = scheduleCohorts(cohortRows, frozen, in.Group.CohortOf)

	plan, err := planner.Schedule(in, settings)
	if err != nil {
		var oc *scheduling.OverconstrainedError
		if errors.As(err, &oc) {
			return passResult{}, NewErrOverconstrainedSchedule(oc)
		}
		return passResult{}, &ErrValidation{err}
	}

	var (
		replaced []model.Wave
		kept     []uuid.UUID
	)
	previous := make(map[uuid.UUID]model.Wave)
	for _, w := range waves {
		if w.Frozen() || (opts.CohortKey != "" && w.CohortKey != opts.CohortKey) {
			kept = append(kept, w.ID)
			continue
		}
		replaced = append(replaced, w)
		previous[w.ID] = w
	}

	inScope := func(row *model.VM) bool {
		return opts.CohortKey == "" || row.CohortKey == opts.CohortKey
	}
	rowByKey := make(map[string]*model.VM, len(rows))
	for i := range rows {
		rowByKey[rows[i].Key] = &rows[i]
	}
	var (
		created  []model.Wave
		placed   []model.VM
		failures []planner.Failure
	)
	touched := make(map[string]bool)
	for _, pw := range plan.Waves {
		if pw.Frozen || (opts.CohortKey != "" && pw.CohortKey != opts.CohortKey) {
			continue
		}
		w := waveFromPlan(project.ID, pass.ID, pw, settings)
		if prev, ok := previous[w.ID]; ok && slices.Equal(prev.MemberKeys(), pw.Members) {
			w.PassID = prev.PassID
			w.Status = prev.Status
			w.CreatedAt = prev.CreatedAt
		}
		created = append(created, w)
		touched[pw.CohortKey] = true
		for i, key := range pw.Members {
			row := rowByKey[key]
			if row == nil {
				continue
			}
			id := w.ID
			row.WaveID = &id
			row.WaveOrder = i + 1
			row.ErrorStage = ""
			row.ErrorReason = ""
			placed = append(placed, *row)
		}
	}
	for _, row := range rows {
		if !inScope(&row) {
			continue
		}
		if reason, ok := failed[row.Key]; ok {
			failures = append(failures, planner.Failure{Key: row.Key, Stage: planner.Stage(row.ErrorStage), Reason: reason})
			continue
		}
		f, ok := deferredBy[row.Key]
		if !ok {
			continue
		}
		row.ErrorStage = string(f.Stage)
		row.ErrorReason = f.Reason
		row.WaveID = nil
		row.WaveOrder = 0
		placed = append(placed, row)
		failures = append(failures, f)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Key < failures[j].Key })

	var prev string
	err = s.commit(ctx, project.ID, func(ctx context.Context) error {
		if err := s.store.VM().ClearPlacement(ctx, project.ID, kept); err != nil {
			return fmt.Errorf("failed to clear placement: %w", err)
		}
		if len(replaced) > 0 {
			filter := store.NewWaveQueryFilter().ByProject(project.ID).NotFrozen()
			if opts.CohortKey != "" {
				filter = filter.ByCohort(opts.CohortKey)
			}
			if err := s.store.Wave().Delete(ctx, filter); err != nil {
				return fmt.Errorf("failed to delete waves: %w", err)
			}
		}
		if err := s.store.Wave().Create(ctx, created); err != nil {
			return fmt.Errorf("failed to create waves: %w", err)
		}
		if err := s.store.VM().UpdateColumns(ctx, placed, store.ScheduleColumns...); err != nil {
			return fmt.Errorf("failed to place vms: %w", err)
		}
		prev, err = s.advance(ctx, project, model.ProjectStatusPlanned, model.ProjectStatusDraft, model.ProjectStatusAssessment)
		return err
	})
	if err != nil {
		return passResult{failures: failures}, err
	}
	if prev != "" {
		emitProject(ctx, s.producer, *project, prev)
	}
	return passResult{vms: len(placed), cohorts: len(touched), failures: failures}, nil
}

func hasCohort(cohorts model.CohortList, key string) bool {
	for _, c := range cohorts {
		if c.Key == key {
			return true
		}
	}
	return false
}

// scheduleCohorts lists the stored cohorts plus any cohort a VM or frozen wave
// still references after its row was deleted; those run last.
func scheduleCohorts(rows model.CohortList, frozen map[string][]scheduling.FrozenWave, cohortOf map[string]string) []planner.Cohort {
	known := make(map[string]bool, len(rows))
	maxOrder := 0
	out := make([]planner.Cohort, 0, len(rows))
	for _, c := range rows {
		known[c.Key] = true
		out = append(out, mappers.PlannerCohort(c))
		if c.Position > maxOrder {
			maxOrder = c.Position
		}
	}
	var orphans []string
	for k := range frozen {
		if !known[k] {
			known[k] = true
			orphans = append(orphans, k)
		}
	}
	for _, k := range cohortOf {
		if !known[k] {
			known[k] = true
			orphans = append(orphans, k)
		}
	}
	sort.Strings(orphans)
	for _, k := range orphans {
		out = append(out, planner.Cohort{Key: k, Order: maxOrder + 1})
	}
	return out
}

// waveID derives the wave identity from its cohort and index, so an unchanged
// plan keeps its ids across schedule passes.
func waveID(projectID uuid.UUID, cohortKey string, index int) uuid.UUID {
	return uuid.NewSHA1(projectID, []byte(cohortKey+"/"+strconv.Itoa(index)))
}

func waveFromPlan(projectID, passID uuid.UUID, pw scheduling.Wave, settings planner.Settings) model.Wave {
	pid := passID
	return model.Wave{
		ID:                    waveID(projectID, pw.CohortKey, pw.Index),
		ProjectID:             projectID,
		PassID:                &pid,
		CohortKey:             pw.CohortKey,
		Index:                 pw.Index,
		Sequence:              pw.Sequence,
		Status:                model.WaveStatusPlanned,
		VMCount:               pw.VMCount,
		DiskGB:                pw.DiskGB,
		Phase1Hours:           pw.Phase1Hours,
		CutoverHours:          pw.CutoverHours,
		TotalHours:            pw.TotalHours,
		ValidationHours:       settings.ValidationHours(pw.VMCount),
		Bottleneck:            pw.Bottleneck,
		BottleneckVM:          pw.BottleneckVM,
		BottleneckExplanation: pw.BottleneckExplanation,
	}
}

func (s *PlannerService) checkReadiness(ctx context.Context, project *model.Project, _ *model.Pass, opts PassOptions) (passResult, error) {
	settings, err := projectSettings(project)
	if err != nil {
		return passResult{}, err
	}
	checker, err := readiness.NewChecker(settings.GapRules)
	if err != nil {
		return passResult{}, &ErrValidation{err}
	}
	rows, err := s.includedVMs(ctx, project.ID)
	if err != nil {
		return passResult{}, err
	}
	tenantRows, err := s.store.Tenant().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list tenants: %w", err)
	}
	mappingRows, err := s.store.NetworkMapping().List(ctx, project.ID)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list network mappings: %w", err)
	}

	tenants := make([]planner.Tenant, 0, len(tenantRows))
	for _, t := range tenantRows {
		tenants = append(tenants, mappers.PlannerTenant(t))
	}

	var refreshed *readiness.Snapshot
	snapshot, err := s.destination(ctx, project.ID, tenants, opts.RefreshDestination)
	if err != nil {
		return passResult{}, err
	}
	if opts.RefreshDestination {
		refreshed = &snapshot
	}

	var eligible []planner.VM
	tenantOf := make(map[string]string)
	scopes := make(map[string]bool)
	for _, row := range rows {
		if !row.Schedulable() || (opts.CohortKey != "" && row.CohortKey != opts.CohortKey) {
			continue
		}
		eligible = append(eligible, mappers.PlannerVM(row))
		scope := grouping.UnassignedCohort
		if row.TenantKey != "" {
			tenantOf[row.Key] = row.TenantKey
			scope = row.TenantKey
		}
		scopes[scope] = true
	}
	mappings := make([]planner.NetworkMapping, 0, len(mappingRows))
	for _, m := range mappingRows {
		mappings = append(mappings, mappers.PlannerMapping(m))
	}

	reqs := planner.Requirements(eligible, tenants, tenantOf, mappings, settings)
	detected := checker.Check(reqs, snapshot)

	filter := store.NewGapQueryFilter().ByProject(project.ID)
	if opts.CohortKey != "" {
		filter = filter.ByScopes(sortedSet(scopes)...)
	}
	existing, err := s.store.Gap().List(ctx, filter)
	if err != nil {
		return passResult{}, fmt.Errorf("failed to list gaps: %w", err)
	}
	records := make([]readiness.Record, 0, len(existing))
	for _, g := range existing {
		records = append(records, g.Record())
	}
	reconciled := readiness.Reconcile(records, detected)

	gaps := make([]model.TargetGap, 0, len(reconciled))
	for _, r := range reconciled {
		gaps = append(gaps, mappers.GapFromRecord(project.ID, r))
	}

	err = s.commit(ctx, project.ID, func(ctx context.Context) error {
		if refreshed != nil {
			if _, err := s.store.Destination().Create(ctx, model.DestinationSnapshot{
				ProjectID: project.ID,
				Source:    destinationSourceOpenStack,
				Inventory: model.MakeJSONField(*refreshed),
			}); err != nil {
				return fmt.Errorf("failed to store destination snapshot: %w", err)
			}
		}
		if err := s.store.Gap().Upsert(ctx, gaps); err != nil {
			return fmt.Errorf("failed to write gaps: %w", err)
		}
		return nil
	})
	if err != nil {
		return passResult{}, err
	}

	for severity, n := range readiness.CountOpen(reconciled) {
		metrics.UpdateOpenGapsMetric(string(severity), n)
	}
	return passResult{vms: len(eligible), cohorts: len(reqs)}, nil
}

// destination returns the destination snapshot the readiness check runs
// against: a fresh one from the loader or the latest stored one.
func (s *PlannerService) destination(ctx context.Context, projectID uuid.UUID, tenants []planner.Tenant, refresh bool) (readiness.Snapshot, error) {
	if refresh {
		if s.loader == nil {
			return readiness.Snapshot{}, NewErrValidation("no destination cloud is configured")
		}
		seen := make(map[readiness.Project]bool)
		var wanted []readiness.Project
		for _, t := range tenants {
			p := readiness.Project{Name: t.Project, Domain: t.Domain}
			if p.Name == "" || seen[p] {
				continue
			}
			seen[p] = true
			wanted = append(wanted, p)
		}
		snap, err := s.loader.Load(ctx, wanted)
		if err != nil {
			return readiness.Snapshot{}, fmt.Errorf("failed to load destination snapshot: %w", err)
		}
		return snap, nil
	}

	latest, err := s.store.Destination().Latest(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return readiness.Snapshot{}, NewErrValidation("project %s has no destination snapshot", projectID)
		}
		return readiness.Snapshot{}, fmt.Errorf("failed to get destination snapshot: %w", err)
	}
	return latest.Inventory.Data, nil
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
