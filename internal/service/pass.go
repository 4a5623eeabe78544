package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/kubev2v/wave-planner/internal/events"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/log"
	"github.com/kubev2v/wave-planner/pkg/metrics"
	"github.com/kubev2v/wave-planner/pkg/worker"
	"go.uber.org/zap"
)

const supersededMessage = "superseded by a newer request"

// DestinationLoader reads a fresh destination snapshot for the wanted projects.
type DestinationLoader interface {
	Load(ctx context.Context, wanted []readiness.Project) (readiness.Snapshot, error)
}

type PassOptions struct {
	// CohortKey scopes schedule and readiness passes to one cohort.
	CohortKey string
	// IgnoreOverrides clears the mode, priority and pin overrides before classifying.
	IgnoreOverrides bool
	// RefreshDestination reloads the destination snapshot before the readiness check.
	RefreshDestination bool
}

type passResult struct {
	vms      int
	cohorts  int
	failures []planner.Failure
}

type passFunc func(ctx context.Context, project *model.Project, pass *model.Pass, opts PassOptions) (passResult, error)

type inflightPass struct {
	id         uuid.UUID
	cancel     context.CancelFunc
	superseded bool
}

// PlannerService runs the planning passes. Passes on one project are serialized;
// a new request for a pass kind cancels the in-flight pass of the same kind,
// which then commits nothing.
type PlannerService struct {
	store    store.Store
	pool     *worker.Pool
	producer *events.EventProducer
	loader   DestinationLoader
	locks    *kmutex.Kmutex
	mu       sync.Mutex
	inflight map[string]*inflightPass
	logger   *log.StructuredLogger
}

type PlannerOption func(*PlannerService)

func WithEventProducer(p *events.EventProducer) PlannerOption {
	return func(s *PlannerService) {
		s.producer = p
	}
}

func WithDestinationLoader(l DestinationLoader) PlannerOption {
	return func(s *PlannerService) {
		s.loader = l
	}
}

func NewPlannerService(s store.Store, pool *worker.Pool, opts ...PlannerOption) *PlannerService {
	ps := &PlannerService{
		store:    s,
		pool:     pool,
		locks:    kmutex.New(),
		inflight: make(map[string]*inflightPass),
		logger:   log.NewDebugLogger("planner_service"),
	}
	for _, o := range opts {
		o(ps)
	}
	return ps
}

func (s *PlannerService) Classify(ctx context.Context, projectID uuid.UUID, opts PassOptions) (*model.Pass, error) {
	return s.runPass(ctx, projectID, model.PassKindClassify, opts, s.classify)
}

func (s *PlannerService) Estimate(ctx context.Context, projectID uuid.UUID, opts PassOptions) (*model.Pass, error) {
	return s.runPass(ctx, projectID, model.PassKindEstimate, opts, s.estimate)
}

func (s *PlannerService) Group(ctx context.Context, projectID uuid.UUID, opts PassOptions) (*model.Pass, error) {
	return s.runPass(ctx, projectID, model.PassKindGroup, opts, s.group)
}

func (s *PlannerService) Schedule(ctx context.Context, projectID uuid.UUID, opts PassOptions) (*model.Pass, error) {
	return s.runPass(ctx, projectID, model.PassKindSchedule, opts, s.schedule)
}

func (s *PlannerService) CheckReadiness(ctx context.Context, projectID uuid.UUID, opts PassOptions) (*model.Pass, error) {
	return s.runPass(ctx, projectID, model.PassKindReadiness, opts, s.checkReadiness)
}

// RunAll chains classify, estimate, group and schedule, stopping at the first failed pass.
func (s *PlannerService) RunAll(ctx context.Context, projectID uuid.UUID, opts PassOptions) ([]model.Pass, error) {
	steps := []func(context.Context, uuid.UUID, PassOptions) (*model.Pass, error){
		s.Classify, s.Estimate, s.Group, s.Schedule,
	}
	passes := make([]model.Pass, 0, len(steps))
	for i, step := range steps {
		stepOpts := opts
		if i > 0 {
			stepOpts.IgnoreOverrides = false
		}
		pass, err := step(ctx, projectID, stepOpts)
		if pass != nil {
			passes = append(passes, *pass)
		}
		if err != nil {
			return passes, err
		}
	}
	return passes, nil
}

func (s *PlannerService) ListPasses(ctx context.Context, projectID uuid.UUID, kind string) (model.PassList, error) {
	filter := store.NewPassQueryFilter().ByProject(projectID)
	if kind != "" {
		filter = filter.ByKind(kind)
	}
	passes, err := s.store.Pass().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	return passes, nil
}

func (s *PlannerService) GetPass(ctx context.Context, projectID, passID uuid.UUID) (*model.Pass, error) {
	pass, err := s.store.Pass().Get(ctx, passID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrPassNotFound(passID)
		}
		return nil, fmt.Errorf("failed to get pass: %w", err)
	}
	if pass.ProjectID != projectID {
		return nil, NewErrPassNotFound(passID)
	}
	return pass, nil
}

func (s *PlannerService) runPass(ctx context.Context, projectID uuid.UUID, kind string, opts PassOptions, fn passFunc) (*model.Pass, error) {
	logger := s.logger.WithContext(ctx)
	tracer := logger.Operation(kind+"_pass").
		WithUUID("project_id", projectID).
		WithString("cohort", opts.CohortKey).
		WithBool("ignore_overrides", opts.IgnoreOverrides).
		Build()

	if _, err := s.passProject(ctx, projectID); err != nil {
		return nil, err
	}

	pass := model.NewPass(projectID, kind)
	pass.CohortKey = opts.CohortKey
	pass.IgnoreOverrides = opts.IgnoreOverrides

	passCtx, entry := s.register(ctx, projectID, kind, pass.ID)
	defer s.unregister(projectID, kind, entry)

	s.locks.Lock(projectID.String())
	defer s.locks.Unlock(projectID.String())
	tracer.Step("project_locked").WithUUID("pass_id", pass.ID).Log()

	// Settings may have changed while the pass waited for the lock.
	project, err := s.passProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Pass().Create(ctx, pass); err != nil {
		return nil, fmt.Errorf("failed to record pass: %w", err)
	}

	start := time.Now()
	res, runErr := fn(passCtx, project, &pass, opts)

	finished := time.Now().UTC()
	pass.FinishedAt = &finished
	pass.VMsAffected = res.vms
	pass.CohortsAffected = res.cohorts
	if len(res.failures) > 0 {
		pass.Failures = model.MakeJSONField(res.failures)
	}
	switch {
	case runErr == nil:
		pass.Status = model.PassStatusCompleted
	case s.isSuperseded(entry) && passCtx.Err() != nil:
		pass.Status = model.PassStatusSuperseded
		pass.Error = supersededMessage
		runErr = NewErrPassSuperseded(pass.ID, kind)
	default:
		pass.Status = model.PassStatusFailed
		pass.Error = runErr.Error()
	}

	// The pass row is written even when the caller went away.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.store.Pass().Update(finishCtx, pass); err != nil {
		tracer.Error(err).WithUUID("pass_id", pass.ID).Log()
	}
	metrics.ObservePass(kind, pass.Status, time.Since(start), res.vms)
	s.emitPass(finishCtx, pass)

	if runErr != nil {
		tracer.Error(runErr).WithUUID("pass_id", pass.ID).WithString("status", pass.Status).Log()
		return &pass, runErr
	}

	tracer.Success().
		WithUUID("pass_id", pass.ID).
		WithInt("vms_affected", pass.VMsAffected).
		WithInt("cohorts_affected", pass.CohortsAffected).
		WithInt("failures", len(res.failures)).
		Log()
	return &pass, nil
}

func (s *PlannerService) passProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	project, err := s.store.Project().Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrProjectNotFound(projectID)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project.Status == model.ProjectStatusArchived {
		return nil, NewErrProjectReadOnly(projectID, project.Status)
	}
	return project, nil
}

func inflightKey(projectID uuid.UUID, kind string) string {
	return projectID.String() + "/" + kind
}

// register cancels the in-flight pass of the same kind and records the new one.
func (s *PlannerService) register(ctx context.Context, projectID uuid.UUID, kind string, passID uuid.UUID) (context.Context, *inflightPass) {
	passCtx, cancel := context.WithCancel(ctx)
	entry := &inflightPass{id: passID, cancel: cancel}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := inflightKey(projectID, kind)
	if prev, ok := s.inflight[key]; ok {
		prev.superseded = true
		prev.cancel()
	}
	s.inflight[key] = entry
	return passCtx, entry
}

func (s *PlannerService) unregister(projectID uuid.UUID, kind string, entry *inflightPass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inflightKey(projectID, kind)
	if s.inflight[key] == entry {
		delete(s.inflight, key)
	}
	entry.cancel()
}

func (s *PlannerService) isSuperseded(entry *inflightPass) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entry.superseded
}

// commit writes the output of a pass in one transaction holding the project lock.
func (s *PlannerService) commit(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context) error) error {
	ctx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()

	if err := s.store.LockProject(ctx, projectID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	_, err = store.Commit(ctx)
	return err
}

func (s *PlannerService) emitPass(ctx context.Context, pass model.Pass) {
	if s.producer == nil {
		return
	}
	kind := events.PassCompletedKind
	if pass.Status != model.PassStatusCompleted {
		kind = events.PassFailedKind
	}
	failures := 0
	if pass.Failures != nil {
		failures = len(pass.Failures.Data)
	}
	ev := events.PassEvent{
		ProjectID:       pass.ProjectID.String(),
		PassID:          pass.ID.String(),
		Kind:            pass.Kind,
		Status:          pass.Status,
		CohortKey:       pass.CohortKey,
		VMsAffected:     pass.VMsAffected,
		CohortsAffected: pass.CohortsAffected,
		Failures:        failures,
		Error:           pass.Error,
	}
	if pass.FinishedAt != nil {
		ev.FinishedAt = *pass.FinishedAt
	}
	if err := s.producer.WriteJSON(ctx, kind, ev); err != nil {
		zap.S().Named("planner_service").Errorw("failed to write event", "error", err, "event_kind", kind)
	}
}

// includedVMs lists the VMs not excluded from migration, sorted by key.
func (s *PlannerService) includedVMs(ctx context.Context, projectID uuid.UUID) (model.VMList, error) {
	vms, err := s.store.VM().List(ctx,
		store.NewVMQueryFilter().ByProject(projectID).Included(),
		store.NewVMQueryOptions().WithSortOrder(store.SortByKey))
	if err != nil {
		return nil, fmt.Errorf("failed to list vms: %w", err)
	}
	return vms, nil
}

func projectSettings(project *model.Project) (planner.Settings, error) {
	if project.Settings == nil {
		return planner.DefaultSettings(), nil
	}
	settings := project.Settings.Data
	if err := settings.Validate(); err != nil {
		return settings, NewErrValidation("invalid project settings: %v", err)
	}
	return settings, nil
}

// advance moves a project forward when a pass produced what the next state
// needs. It returns the previous status, empty when the project did not move.
func (s *PlannerService) advance(ctx context.Context, project *model.Project, to string, from ...string) (string, error) {
	for _, f := range from {
		if project.Status != f {
			continue
		}
		prev := project.Status
		project.Status = to
		if _, err := s.store.Project().Update(ctx, *project); err != nil {
			return "", fmt.Errorf("failed to update project status: %w", err)
		}
		return prev, nil
	}
	return "", nil
}
