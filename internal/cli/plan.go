package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/service/report/csv"
	"github.com/kubev2v/wave-planner/internal/service/report/types"
	"github.com/kubev2v/wave-planner/internal/service/report/xlsx"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

// PlanOptions plans an inventory file without a server or a database.
type PlanOptions struct {
	File        string
	Output      string
	Export      string
	Workers     int
	Verbose     bool
	generatedAt func() time.Time

	out io.Writer
}

func DefaultPlanOptions() *PlanOptions {
	return &PlanOptions{
		Workers:     worker.DefaultPoolSize,
		generatedAt: time.Now,
		out:         os.Stdout,
	}
}

func NewCmdPlan() *cobra.Command {
	o := DefaultPlanOptions()
	cmd := &cobra.Command{
		Use:   "plan -f FILE",
		Short: "Plan an inventory file offline and print its waves.",
		Long: `Plan reads an inventory file holding VMs, tenants, dependencies and network mappings,
optionally with project settings, a risk configuration and a destination snapshot, and runs
classification, estimation, grouping, scheduling and, when a destination is given, the
readiness check. Nothing is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.out = cmd.OutOrStdout()
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *PlanOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.File, "file", "f", o.File, "Inventory file, YAML or JSON")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVar(&o.Export, "export", o.Export, "Also write the plan to this .xlsx or .csv file")
	fs.IntVar(&o.Workers, "workers", o.Workers, "Size of the worker pool")
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Log planning progress to stderr")
}

func (o *PlanOptions) Validate(args []string) error {
	if o.File == "" {
		return fmt.Errorf("an inventory file is required (-f)")
	}
	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	if o.Export != "" && !funk.ContainsString(legalExportFormats, exportFormat(o.Export)) {
		return fmt.Errorf("export file must end in one of %v", legalExportFormats)
	}
	return nil
}

func (o *PlanOptions) Run(ctx context.Context, args []string) error {
	if o.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer zap.ReplaceGlobals(logger)()
	}

	file, err := inventory.Load(o.File)
	if err != nil {
		return err
	}

	pool, err := worker.NewPool("plan", o.Workers)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release(5 * time.Second)

	start := time.Now()
	result, err := planner.Run(ctx, pool, planner.Input{
		Settings:        file.Settings,
		RiskConfig:      file.Risk(),
		VMs:             file.VMs,
		Tenants:         file.Tenants,
		Dependencies:    file.Edges(),
		NetworkMappings: file.NetworkMappings,
		Snapshot:        file.Destination,
	})
	if err != nil {
		return fmt.Errorf("planning %s: %w", o.File, err)
	}
	zap.S().Named("plan").Infow("plan computed", "file", o.File, "vms", len(file.VMs),
		"waves", len(result.Plan.Waves), "failures", len(result.Failures), "duration", time.Since(start))

	data := BuildPlanData(file, result, o.generatedAt())
	if o.Export != "" {
		if err := writeExport(o.Export, data); err != nil {
			return err
		}
	}

	summary := NewPlanSummary(file, result)
	switch o.Output {
	case jsonFormat:
		marshalled, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling plan: %w", err)
		}
		fmt.Fprintf(o.out, "%s\n", marshalled)
		return nil
	case yamlFormat:
		marshalled, err := yaml.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshalling plan: %w", err)
		}
		fmt.Fprintf(o.out, "%s", marshalled)
		return nil
	default:
		return printPlanTable(o.out, summary)
	}
}

func exportFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func writeExport(path string, data *types.PlanData) error {
	var renderer types.ReportRenderer = xlsx.NewRenderer()
	if exportFormat(path) == string(types.ReportFormatCSV) {
		renderer = csv.NewRenderer()
	}
	content, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering plan: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// PlanSummary is the printed form of an offline plan.
type PlanSummary struct {
	Name       string            `json:"name,omitempty"`
	VMs        int               `json:"vms"`
	Excluded   []string          `json:"excluded,omitempty"`
	Overbooked bool              `json:"overbooked"`
	Waves      []PlanWaveSummary `json:"waves"`
	Failures   []planner.Failure `json:"failures,omitempty"`
	Gaps       []PlanGapSummary  `json:"gaps,omitempty"`
}

type PlanWaveSummary struct {
	Sequence     int      `json:"sequence"`
	Cohort       string   `json:"cohort"`
	Index        int      `json:"index"`
	VMs          []string `json:"vms"`
	DiskGB       float64  `json:"disk_gb"`
	Phase1Hours  float64  `json:"phase1_hours"`
	CutoverHours float64  `json:"cutover_hours"`
	TotalHours   float64  `json:"total_hours"`
	Bottleneck   string   `json:"bottleneck,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

type PlanGapSummary struct {
	Scope    string `json:"scope"`
	Type     string `json:"type"`
	Resource string `json:"resource,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func NewPlanSummary(file *inventory.File, result *planner.Result) PlanSummary {
	summary := PlanSummary{
		Name:       file.Name,
		VMs:        len(file.VMs),
		Excluded:   result.Excluded,
		Overbooked: result.Plan.Overbooked(),
		Waves:      make([]PlanWaveSummary, 0, len(result.Plan.Waves)),
		Failures:   result.Failures,
	}
	for _, w := range result.Plan.Waves {
		summary.Waves = append(summary.Waves, PlanWaveSummary{
			Sequence:     w.Sequence,
			Cohort:       w.CohortKey,
			Index:        w.Index,
			VMs:          w.Members,
			DiskGB:       w.DiskGB,
			Phase1Hours:  w.Phase1Hours,
			CutoverHours: w.CutoverHours,
			TotalHours:   w.TotalHours,
			Bottleneck:   w.BottleneckVM,
			Explanation:  w.BottleneckExplanation,
		})
	}
	for _, g := range result.Gaps {
		summary.Gaps = append(summary.Gaps, PlanGapSummary{
			Scope:    g.Scope,
			Type:     string(g.Type),
			Resource: g.Resource,
			Severity: string(g.Severity),
			Message:  g.Message,
		})
	}
	return summary
}

func printPlanTable(out io.Writer, summary PlanSummary) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "SEQ\tCOHORT\tWAVE\tVMS\tDISK(GB)\tPHASE1(H)\tCUTOVER(H)\tTOTAL(H)\tBOTTLENECK")
	for _, wv := range summary.Waves {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t%s\n", wv.Sequence, wv.Cohort, wv.Index,
			len(wv.VMs), wv.DiskGB, wv.Phase1Hours, wv.CutoverHours, wv.TotalHours, wv.Bottleneck)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if summary.Overbooked {
		fmt.Fprintln(out, "\nwarning: the plan needs more working days than the project window")
	}
	if len(summary.Failures) > 0 {
		fmt.Fprintln(out, "\nunscheduled:")
		for _, f := range summary.Failures {
			fmt.Fprintf(out, "  %s (%s): %s\n", f.Key, f.Stage, f.Reason)
		}
	}
	if len(summary.Gaps) > 0 {
		fmt.Fprintln(out, "\nreadiness gaps:")
		for _, g := range summary.Gaps {
			fmt.Fprintf(out, "  [%s] %s %s: %s\n", g.Severity, g.Scope, g.Type, g.Message)
		}
	}
	return nil
}

// BuildPlanData turns an offline result into the rows the report renderers expect.
func BuildPlanData(file *inventory.File, result *planner.Result, generated time.Time) *types.PlanData {
	projectID := uuid.New()
	name := file.Name
	if name == "" {
		name = "offline plan"
	}
	data := &types.PlanData{
		Project: model.Project{
			ID:       projectID,
			Name:     name,
			Status:   model.ProjectStatusPlanned,
			Settings: model.MakeJSONField(file.Settings),
		},
		Generated: generated,
	}

	classes := make(map[string]planner.Classification, len(result.Classifications))
	for _, c := range result.Classifications {
		classes[c.Key] = c
	}
	estimates := make(map[string]planner.Estimate, len(result.Estimates))
	for _, e := range result.Estimates {
		estimates[e.Key] = e
	}
	failures := make(map[string]planner.Failure, len(result.Failures))
	for _, f := range result.Failures {
		failures[f.Key] = f
	}

	waveIDs := make(map[int]uuid.UUID, len(result.Plan.Waves))
	for _, pw := range result.Plan.Waves {
		id := uuid.New()
		waveIDs[pw.Sequence] = id
		data.Waves = append(data.Waves, model.Wave{
			ID:                    id,
			ProjectID:             projectID,
			CohortKey:             pw.CohortKey,
			Index:                 pw.Index,
			Sequence:              pw.Sequence,
			Status:                model.WaveStatusPlanned,
			VMCount:               pw.VMCount,
			DiskGB:                pw.DiskGB,
			Phase1Hours:           pw.Phase1Hours,
			CutoverHours:          pw.CutoverHours,
			TotalHours:            pw.TotalHours,
			ValidationHours:       file.Settings.ValidationHours(pw.VMCount),
			Bottleneck:            pw.Bottleneck,
			BottleneckVM:          pw.BottleneckVM,
			BottleneckExplanation: pw.BottleneckExplanation,
		})
	}
	waveIndex := make(map[uuid.UUID]int, len(data.Waves))
	for i, w := range data.Waves {
		waveIndex[w.ID] = i
	}

	for _, in := range file.VMs {
		vm := mappers.VMFromInventory(projectID, in)
		vm.ExcludeFromMigration = in.Exclude
		if tenant, ok := result.Group.TenantOf[in.Key]; ok && vm.TenantKey == "" {
			vm.TenantKey = tenant
			vm.TenantSource = model.TenantSourceDetected
		}
		vm.CohortKey = result.Group.CohortOf[in.Key]
		if c, ok := classes[in.Key]; ok {
			mappers.ApplyClassification(&vm, uuid.Nil, c)
		}
		if e, ok := estimates[in.Key]; ok && e.Err == nil {
			mappers.ApplyEstimate(&vm, e)
		}
		if f, ok := failures[in.Key]; ok {
			vm.ErrorStage = string(f.Stage)
			vm.ErrorReason = f.Reason
		}
		if pos, ok := result.Plan.Positions[in.Key]; ok {
			id := waveIDs[pos.Sequence]
			vm.WaveID = &id
			vm.WaveOrder = pos.Order
			w := &data.Waves[waveIndex[id]]
			w.VMs = append(w.VMs, vm)
		}
		data.VMs = append(data.VMs, vm)
	}

	for _, g := range result.Gaps {
		data.Gaps = append(data.Gaps, mappers.GapFromRecord(projectID, readiness.Record{Gap: g, Status: readiness.StatusOpen}))
	}
	return data
}
