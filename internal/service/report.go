package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/service/report/csv"
	"github.com/kubev2v/wave-planner/internal/service/report/types"
	"github.com/kubev2v/wave-planner/internal/service/report/xlsx"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/pkg/log"
)

type ReportFormat = types.ReportFormat

const (
	ReportFormatCSV  = types.ReportFormatCSV
	ReportFormatXLSX = types.ReportFormatXLSX
)

// Report is a rendered plan export.
type Report struct {
	Content     []byte
	ContentType string
	Filename    string
}

type ReportService struct {
	store     store.Store
	renderers map[types.ReportFormat]types.ReportRenderer
	logger    *log.StructuredLogger
}

func NewReportService(s store.Store) *ReportService {
	service := &ReportService{
		store:     s,
		renderers: make(map[types.ReportFormat]types.ReportRenderer),
		logger:    log.NewDebugLogger("report_service"),
	}

	csvRenderer := csv.NewRenderer()
	xlsxRenderer := xlsx.NewRenderer()

	service.renderers[csvRenderer.SupportedFormat()] = csvRenderer
	service.renderers[xlsxRenderer.SupportedFormat()] = xlsxRenderer

	return service
}

// ExportPlan renders the persisted plan of a project: waves, VMs and gaps.
func (r *ReportService) ExportPlan(ctx context.Context, projectID uuid.UUID, owner string, format ReportFormat) (*Report, error) {
	renderer, exists := r.renderers[format]
	if !exists {
		return nil, NewErrValidation("unsupported report format: %s", format)
	}

	data, err := r.LoadPlan(ctx, projectID, owner)
	if err != nil {
		return nil, err
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", format, err)
	}
	r.logger.WithContext(ctx).Operation("export_plan").
		WithUUID("project_id", projectID).
		WithString("format", string(format)).
		Build().Success().WithInt("bytes", len(content)).Log()

	return &Report{
		Content:     content,
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("%s-plan.%s", data.Project.Name, format),
	}, nil
}

func (r *ReportService) LoadPlan(ctx context.Context, projectID uuid.UUID, owner string) (*types.PlanData, error) {
	project, err := getProject(ctx, r.store, projectID, owner)
	if err != nil {
		return nil, err
	}
	waves, err := r.store.Wave().List(ctx, store.NewWaveQueryFilter().ByProject(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list waves: %w", err)
	}
	vms, err := r.store.VM().List(ctx, store.NewVMQueryFilter().ByProject(projectID), store.NewVMQueryOptions().WithSortOrder(store.SortByKey))
	if err != nil {
		return nil, fmt.Errorf("failed to list vms: %w", err)
	}
	gaps, err := r.store.Gap().List(ctx, store.NewGapQueryFilter().ByProject(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	return &types.PlanData{
		Project:   *project,
		Waves:     waves,
		VMs:       vms,
		Gaps:      gaps,
		Generated: time.Now(),
	}, nil
}
