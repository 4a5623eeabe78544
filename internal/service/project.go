package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/events"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/log"
)

var projectTransitions = map[string][]string{
	model.ProjectStatusDraft:      {model.ProjectStatusAssessment, model.ProjectStatusCancelled},
	model.ProjectStatusAssessment: {model.ProjectStatusDraft, model.ProjectStatusPlanned, model.ProjectStatusCancelled},
	model.ProjectStatusPlanned:    {model.ProjectStatusAssessment, model.ProjectStatusApproved, model.ProjectStatusCancelled},
	model.ProjectStatusApproved:   {model.ProjectStatusPlanned, model.ProjectStatusPreparing, model.ProjectStatusCancelled},
	model.ProjectStatusPreparing:  {model.ProjectStatusApproved, model.ProjectStatusReady, model.ProjectStatusCancelled},
	model.ProjectStatusReady:      {model.ProjectStatusPreparing, model.ProjectStatusExecuting, model.ProjectStatusCancelled},
	model.ProjectStatusExecuting:  {model.ProjectStatusCompleted, model.ProjectStatusCancelled},
	model.ProjectStatusCompleted:  {model.ProjectStatusArchived},
	model.ProjectStatusCancelled:  {model.ProjectStatusArchived},
}

// CanTransitionProject reports whether the lifecycle allows from -> to.
func CanTransitionProject(from, to string) bool {
	return slices.Contains(projectTransitions[from], to)
}

type ProjectService struct {
	store    store.Store
	producer *events.EventProducer
	defaults planner.Settings
	logger   *log.StructuredLogger
}

func NewProjectService(s store.Store, producer *events.EventProducer, defaults planner.Settings) *ProjectService {
	return &ProjectService{
		store:    s,
		producer: producer,
		defaults: defaults,
		logger:   log.NewDebugLogger("project_service"),
	}
}

func (ps *ProjectService) ListProjects(ctx context.Context, owner string, includeArchived bool) (model.ProjectList, error) {
	filter := store.NewProjectQueryFilter()
	if owner != "" {
		filter = filter.ByOwner(owner)
	}
	if !includeArchived {
		filter = filter.WithoutArchived()
	}
	projects, err := ps.store.Project().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (ps *ProjectService) GetProject(ctx context.Context, id uuid.UUID, owner string) (*model.Project, error) {
	return getProject(ctx, ps.store, id, owner)
}

// getProject hides projects of other owners behind a not found error. An empty
// owner skips the check.
func getProject(ctx context.Context, s store.Store, id uuid.UUID, owner string) (*model.Project, error) {
	project, err := s.Project().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrProjectNotFound(id)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if owner != "" && project.Owner != owner {
		return nil, NewErrProjectNotFound(id)
	}
	return project, nil
}

// getWritableProject is getProject for mutations: archived projects are read only.
func getWritableProject(ctx context.Context, s store.Store, id uuid.UUID, owner string) (*model.Project, error) {
	project, err := getProject(ctx, s, id, owner)
	if err != nil {
		return nil, err
	}
	if project.Status == model.ProjectStatusArchived {
		return nil, NewErrProjectReadOnly(id, project.Status)
	}
	return project, nil
}

func (ps *ProjectService) CreateProject(ctx context.Context, form mappers.ProjectCreateForm) (*model.Project, error) {
	logger := ps.logger.WithContext(ctx)
	tracer := logger.Operation("create_project").
		WithString("name", form.Name).
		WithString("owner", form.Owner).
		Build()

	if form.Name == "" {
		return nil, NewErrValidation("project name is required")
	}
	project := form.ToModel(ps.defaults)
	if err := project.Settings.Data.Validate(); err != nil {
		return nil, NewErrValidation("invalid project settings: %v", err)
	}
	if form.RiskConfig != nil {
		if _, err := classifier.New(*form.RiskConfig); err != nil {
			return nil, &ErrValidation{err}
		}
	}

	ctx, err := ps.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}

	created, err := ps.store.Project().Create(ctx, project)
	if err != nil {
		_, _ = store.Rollback(ctx)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicate("project", form.Name)
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if form.RiskConfig != nil {
		rc, err := ps.store.RiskConfig().Create(ctx, model.RiskConfig{
			ProjectID: created.ID,
			Rules:     model.MakeJSONField(*form.RiskConfig),
		})
		if err != nil {
			_, _ = store.Rollback(ctx)
			return nil, fmt.Errorf("failed to create risk configuration: %w", err)
		}
		created.ActiveRiskConfigID = &rc.ID
		if created, err = ps.store.Project().Update(ctx, *created); err != nil {
			_, _ = store.Rollback(ctx)
			return nil, fmt.Errorf("failed to activate risk configuration: %w", err)
		}
	}

	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	tracer.Success().WithUUID("project_id", created.ID).Log()
	return created, nil
}

func (ps *ProjectService) UpdateSettings(ctx context.Context, id uuid.UUID, owner string, settings planner.Settings) (*model.Project, error) {
	if err := settings.Validate(); err != nil {
		return nil, NewErrValidation("invalid project settings: %v", err)
	}
	project, err := getWritableProject(ctx, ps.store, id, owner)
	if err != nil {
		return nil, err
	}
	project.Settings = model.MakeJSONField(settings)
	updated, err := ps.store.Project().Update(ctx, *project)
	if err != nil {
		return nil, fmt.Errorf("failed to update project settings: %w", err)
	}
	return updated, nil
}

func (ps *ProjectService) DeleteProject(ctx context.Context, id uuid.UUID, owner string) error {
	logger := ps.logger.WithContext(ctx)
	tracer := logger.Operation("delete_project").WithUUID("project_id", id).Build()

	if _, err := getProject(ctx, ps.store, id, owner); err != nil {
		return err
	}

	ctx, err := ps.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	if err := ps.store.PurgeProject(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return fmt.Errorf("failed to delete project rows: %w", err)
	}
	if err := ps.store.RiskConfig().DeleteByProject(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return fmt.Errorf("failed to delete risk configurations: %w", err)
	}
	if err := ps.store.Project().Delete(ctx, id); err != nil {
		_, _ = store.Rollback(ctx)
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if _, err := store.Commit(ctx); err != nil {
		return err
	}

	tracer.Success().Log()
	return nil
}

// CreateRiskConfig stores cfg as the next version of the project's rules.
// Versions are immutable: changing the rules always creates a new one.
func (ps *ProjectService) CreateRiskConfig(ctx context.Context, projectID uuid.UUID, owner string, cfg classifier.Config, activate bool) (*model.RiskConfig, error) {
	if _, err := classifier.New(cfg); err != nil {
		return nil, &ErrValidation{err}
	}
	project, err := getWritableProject(ctx, ps.store, projectID, owner)
	if err != nil {
		return nil, err
	}

	ctx, err = ps.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := ps.store.RiskConfig().Create(ctx, model.RiskConfig{
		ProjectID: projectID,
		Rules:     model.MakeJSONField(cfg),
	})
	if err != nil {
		_, _ = store.Rollback(ctx)
		return nil, fmt.Errorf("failed to create risk configuration: %w", err)
	}
	if activate {
		project.ActiveRiskConfigID = &rc.ID
		if _, err := ps.store.Project().Update(ctx, *project); err != nil {
			_, _ = store.Rollback(ctx)
			return nil, fmt.Errorf("failed to activate risk configuration: %w", err)
		}
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return rc, nil
}

func (ps *ProjectService) ListRiskConfigs(ctx context.Context, projectID uuid.UUID, owner string) (model.RiskConfigList, error) {
	if _, err := getProject(ctx, ps.store, projectID, owner); err != nil {
		return nil, err
	}
	configs, err := ps.store.RiskConfig().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list risk configurations: %w", err)
	}
	return configs, nil
}

// ActivateRiskConfig selects the version used by the next classify pass.
// Already classified VMs keep the version they were scored with.
func (ps *ProjectService) ActivateRiskConfig(ctx context.Context, projectID uuid.UUID, owner string, configID uuid.UUID) (*model.Project, error) {
	project, err := getWritableProject(ctx, ps.store, projectID, owner)
	if err != nil {
		return nil, err
	}
	rc, err := ps.store.RiskConfig().Get(ctx, configID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrResourceNotFound(configID, "risk configuration")
		}
		return nil, fmt.Errorf("failed to get risk configuration: %w", err)
	}
	if rc.ProjectID != projectID {
		return nil, NewErrResourceNotFound(configID, "risk configuration")
	}
	project.ActiveRiskConfigID = &rc.ID
	updated, err := ps.store.Project().Update(ctx, *project)
	if err != nil {
		return nil, fmt.Errorf("failed to activate risk configuration: %w", err)
	}
	return updated, nil
}

// TransitionProject moves the project along its lifecycle. Archiving replaces
// the plan with its summary.
func (ps *ProjectService) TransitionProject(ctx context.Context, id uuid.UUID, owner string, to string) (*model.Project, error) {
	logger := ps.logger.WithContext(ctx)
	tracer := logger.Operation("transition_project").
		WithUUID("project_id", id).
		WithString("to", to).
		Build()

	project, err := getProject(ctx, ps.store, id, owner)
	if err != nil {
		return nil, err
	}
	prev := project.Status
	if !CanTransitionProject(prev, to) {
		return nil, NewErrInvalidTransition("project", prev, to)
	}

	ctx, err = ps.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	if err := ps.store.LockProject(ctx, id); err != nil {
		return nil, err
	}

	if to == model.ProjectStatusArchived {
		summary, err := ps.summarize(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := ps.store.PurgeProject(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to purge project rows: %w", err)
		}
		project.Summary = model.MakeJSONField(summary)
		project.ActiveRiskConfigID = nil
	}
	project.Status = to
	updated, err := ps.store.Project().Update(ctx, *project)
	if err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	emitProject(ctx, ps.producer, *updated, prev)
	tracer.Success().WithString("from", prev).Log()
	return updated, nil
}

func (ps *ProjectService) summarize(ctx context.Context, projectID uuid.UUID) (model.ProjectSummary, error) {
	summary := model.ProjectSummary{
		Categories: map[string]int{},
		ArchivedAt: time.Now().UTC(),
	}

	vms, err := ps.store.VM().List(ctx, store.NewVMQueryFilter().ByProject(projectID), nil)
	if err != nil {
		return summary, fmt.Errorf("failed to list vms: %w", err)
	}
	for _, vm := range vms {
		if vm.ExcludeFromMigration {
			summary.ExcludedCount++
			continue
		}
		summary.VMCount++
		summary.TotalDiskGB += vm.ProvisionedGB
		summary.TotalPhase1Hours += vm.Phase1Hours
		summary.TotalCutoverHours += vm.CutoverHours
		if vm.RiskCategory != "" {
			summary.Categories[vm.RiskCategory]++
		}
	}

	tenants, err := ps.store.Tenant().List(ctx, projectID)
	if err != nil {
		return summary, fmt.Errorf("failed to list tenants: %w", err)
	}
	summary.TenantCount = len(tenants)

	cohorts, err := ps.store.Cohort().List(ctx, projectID)
	if err != nil {
		return summary, fmt.Errorf("failed to list cohorts: %w", err)
	}
	summary.CohortCount = len(cohorts)

	waves, err := ps.store.Wave().List(ctx, store.NewWaveQueryFilter().ByProject(projectID))
	if err != nil {
		return summary, fmt.Errorf("failed to list waves: %w", err)
	}
	summary.WaveCount = len(waves)
	return summary, nil
}
