package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/events"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/log"
)

var waveTransitions = map[string][]string{
	model.WaveStatusPlanned:         {model.WaveStatusPreChecksPassed, model.WaveStatusCancelled},
	model.WaveStatusPreChecksPassed: {model.WaveStatusPlanned, model.WaveStatusExecuting, model.WaveStatusCancelled},
	model.WaveStatusExecuting:       {model.WaveStatusValidating, model.WaveStatusFailed},
	model.WaveStatusValidating:      {model.WaveStatusComplete, model.WaveStatusFailed},
}

func CanTransitionWave(from, to string) bool {
	return slices.Contains(waveTransitions[from], to)
}

type WaveService struct {
	store    store.Store
	producer *events.EventProducer
	logger   *log.StructuredLogger
}

func NewWaveService(s store.Store, producer *events.EventProducer) *WaveService {
	return &WaveService{
		store:    s,
		producer: producer,
		logger:   log.NewDebugLogger("wave_service"),
	}
}

// ListWaves returns the waves in execution order. An empty cohort lists them all.
func (ws *WaveService) ListWaves(ctx context.Context, projectID uuid.UUID, owner, cohortKey string) (model.WaveList, error) {
	if _, err := getProject(ctx, ws.store, projectID, owner); err != nil {
		return nil, err
	}
	filter := store.NewWaveQueryFilter().ByProject(projectID)
	if cohortKey != "" {
		filter = filter.ByCohort(cohortKey)
	}
	waves, err := ws.store.Wave().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list waves: %w", err)
	}
	return waves, nil
}

func (ws *WaveService) GetWave(ctx context.Context, projectID uuid.UUID, owner string, waveID uuid.UUID) (*model.Wave, error) {
	if _, err := getProject(ctx, ws.store, projectID, owner); err != nil {
		return nil, err
	}
	return ws.getWave(ctx, projectID, waveID)
}

func (ws *WaveService) getWave(ctx context.Context, projectID, waveID uuid.UUID) (*model.Wave, error) {
	wave, err := ws.store.Wave().Get(ctx, waveID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrWaveNotFound(waveID)
		}
		return nil, fmt.Errorf("failed to get wave: %w", err)
	}
	if wave.ProjectID != projectID {
		return nil, NewErrWaveNotFound(waveID)
	}
	return wave, nil
}

// TransitionWave moves a wave along its lifecycle. Leaving planned for
// pre_checks_passed requires a completed readiness pass over the cohort, with
// every critical gap of the member tenants resolved or overridden.
func (ws *WaveService) TransitionWave(ctx context.Context, projectID uuid.UUID, owner string, waveID uuid.UUID, to string) (*model.Wave, error) {
	logger := ws.logger.WithContext(ctx)
	tracer := logger.Operation("transition_wave").
		WithUUID("project_id", projectID).
		WithUUID("wave_id", waveID).
		WithString("to", to).
		Build()

	if _, err := getWritableProject(ctx, ws.store, projectID, owner); err != nil {
		return nil, err
	}

	ctx, err := ws.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	// Gates read the gaps; hold the project so a readiness pass cannot commit in between.
	if err := ws.store.LockProject(ctx, projectID); err != nil {
		return nil, err
	}

	wave, err := ws.getWave(ctx, projectID, waveID)
	if err != nil {
		return nil, err
	}
	prev := wave.Status
	if !CanTransitionWave(prev, to) {
		return nil, NewErrInvalidTransition("wave", prev, to)
	}

	if prev == model.WaveStatusPlanned && to == model.WaveStatusPreChecksPassed {
		checked, err := ws.readinessChecked(ctx, *wave)
		if err != nil {
			return nil, err
		}
		if !checked {
			tracer.Step("gated").WithString("reason", "readiness_unchecked").Log()
			return nil, NewErrReadinessUnchecked(waveID, wave.CohortKey)
		}
		blocking, err := ws.blockingGaps(ctx, *wave)
		if err != nil {
			return nil, err
		}
		if len(blocking) > 0 {
			tracer.Step("gated").WithInt("blocking_gaps", len(blocking)).Log()
			return nil, NewErrGapsUnresolved(waveID, blocking)
		}
	}

	if err := ws.store.Wave().UpdateStatus(ctx, waveID, to); err != nil {
		return nil, fmt.Errorf("failed to update wave status: %w", err)
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	wave.Status = to
	emitWave(ctx, ws.producer, *wave, prev)
	tracer.Success().WithString("from", prev).Log()
	return wave, nil
}

// readinessChecked reports whether a completed readiness pass covered the cohort of the wave.
func (ws *WaveService) readinessChecked(ctx context.Context, wave model.Wave) (bool, error) {
	passes, err := ws.store.Pass().List(ctx, store.NewPassQueryFilter().
		ByProject(wave.ProjectID).
		ByKind(model.PassKindReadiness).
		ByStatus(model.PassStatusCompleted))
	if err != nil {
		return false, fmt.Errorf("failed to list readiness passes: %w", err)
	}
	for _, p := range passes {
		if p.CohortKey == "" || p.CohortKey == wave.CohortKey {
			return true, nil
		}
	}
	return false, nil
}

// blockingGaps lists the open critical gaps scoped to the tenants of the wave
// members, or to the unassigned scope for members without a tenant.
func (ws *WaveService) blockingGaps(ctx context.Context, wave model.Wave) ([]readiness.Record, error) {
	gaps, err := ws.store.Gap().List(ctx, store.NewGapQueryFilter().ByProject(wave.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	records := make([]readiness.Record, 0, len(gaps))
	for _, g := range gaps {
		records = append(records, g.Record())
	}
	return readiness.Blocking(records, waveScopes(wave)), nil
}

func waveScopes(wave model.Wave) []string {
	scopes := make(map[string]bool)
	for _, vm := range wave.VMs {
		if vm.TenantKey == "" {
			scopes[grouping.UnassignedCohort] = true
			continue
		}
		scopes[vm.TenantKey] = true
	}
	return sortedSet(scopes)
}
