package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/log"
	"github.com/kubev2v/wave-planner/pkg/metrics"
)

const destinationSourceUpload = "upload"

type GapFilter struct {
	Scope    string
	Status   string
	Severity string
}

type GapResolution struct {
	Status string
	By     string
	Note   string
}

type GapService struct {
	store  store.Store
	logger *log.StructuredLogger
}

func NewGapService(s store.Store) *GapService {
	return &GapService{store: s, logger: log.NewDebugLogger("gap_service")}
}

func (gs *GapService) ListGaps(ctx context.Context, projectID uuid.UUID, owner string, filter GapFilter) (model.TargetGapList, error) {
	if _, err := getProject(ctx, gs.store, projectID, owner); err != nil {
		return nil, err
	}
	f := store.NewGapQueryFilter().ByProject(projectID)
	if filter.Scope != "" {
		f = f.ByScopes(filter.Scope)
	}
	if filter.Status != "" {
		f = f.ByStatus(filter.Status)
	}
	if filter.Severity != "" {
		f = f.BySeverity(filter.Severity)
	}
	gaps, err := gs.store.Gap().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	return gaps, nil
}

// ResolveGap records an operator decision on a gap. Resolving or overriding
// requires the operator name; reopening clears it.
func (gs *GapService) ResolveGap(ctx context.Context, projectID uuid.UUID, owner string, gapID uuid.UUID, res GapResolution) (*model.TargetGap, error) {
	logger := gs.logger.WithContext(ctx)
	tracer := logger.Operation("resolve_gap").
		WithUUID("project_id", projectID).
		WithUUID("gap_id", gapID).
		WithString("status", res.Status).
		Build()

	switch readiness.Status(res.Status) {
	case readiness.StatusResolved, readiness.StatusOverridden:
		if res.By == "" {
			return nil, NewErrValidation("resolving a gap requires the operator name")
		}
	case readiness.StatusOpen:
		res.By, res.Note = "", ""
	default:
		return nil, NewErrValidation("unknown gap status %q", res.Status)
	}

	if _, err := getWritableProject(ctx, gs.store, projectID, owner); err != nil {
		return nil, err
	}
	gap, err := gs.store.Gap().Get(ctx, gapID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrGapNotFound(gapID)
		}
		return nil, fmt.Errorf("failed to get gap: %w", err)
	}
	if gap.ProjectID != projectID {
		return nil, NewErrGapNotFound(gapID)
	}

	gap.Status = res.Status
	gap.AutoResolved = false
	gap.ResolvedBy = res.By
	gap.Note = res.Note
	updated, err := gs.store.Gap().Update(ctx, *gap)
	if err != nil {
		return nil, fmt.Errorf("failed to update gap: %w", err)
	}

	if err := gs.refreshMetrics(ctx, projectID); err != nil {
		tracer.Error(err).Log()
	}
	tracer.Success().WithString("by", res.By).Log()
	return updated, nil
}

// UploadDestinationSnapshot stores an operator supplied destination inventory,
// used by readiness passes that do not refresh from the cloud.
func (gs *GapService) UploadDestinationSnapshot(ctx context.Context, projectID uuid.UUID, owner string, snapshot readiness.Snapshot) (*model.DestinationSnapshot, error) {
	if _, err := getWritableProject(ctx, gs.store, projectID, owner); err != nil {
		return nil, err
	}
	created, err := gs.store.Destination().Create(ctx, model.DestinationSnapshot{
		ProjectID: projectID,
		Source:    destinationSourceUpload,
		Inventory: model.MakeJSONField(snapshot),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store destination snapshot: %w", err)
	}
	return created, nil
}

func (gs *GapService) refreshMetrics(ctx context.Context, projectID uuid.UUID) error {
	gaps, err := gs.store.Gap().List(ctx, store.NewGapQueryFilter().ByProject(projectID))
	if err != nil {
		return err
	}
	records := make([]readiness.Record, 0, len(gaps))
	for _, g := range gaps {
		records = append(records, g.Record())
	}
	for severity, n := range readiness.CountOpen(records) {
		metrics.UpdateOpenGapsMetric(string(severity), n)
	}
	return nil
}
