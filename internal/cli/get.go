package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	api "github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

type GetOptions struct {
	GlobalOptions

	Output  string
	Project string

	out io.Writer
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
		out:           os.Stdout,
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:   "get (TYPE | TYPE/ID)",
		Short: "Display one or many resources: projects, waves, gaps or passes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVarP(&o.Project, "project", "p", o.Project, "ID of the project owning waves, gaps and passes")
}

func (o *GetOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.out = cmd.OutOrStdout()
	return nil
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	kind, _, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if kind != ProjectKind {
		if _, err := uuid.Parse(o.Project); err != nil {
			return fmt.Errorf("listing %s requires a valid --project: %w", plural(kind), err)
		}
	}

	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}

	return nil
}

func (o *GetOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}

	var response any
	switch {
	case kind == ProjectKind && id != nil:
		response, err = c.GetProject(ctx, *id)
	case kind == ProjectKind:
		response, err = c.ListProjects(ctx)
	case kind == WaveKind:
		response, err = c.ListWaves(ctx, uuid.MustParse(o.Project))
	case kind == GapKind:
		response, err = c.ListGaps(ctx, uuid.MustParse(o.Project))
	case kind == PassKind:
		response, err = c.ListPasses(ctx, uuid.MustParse(o.Project))
	default:
		return fmt.Errorf("unsupported resource kind: %s", kind)
	}
	if err != nil {
		if id != nil {
			return fmt.Errorf("reading %s/%s: %w", kind, id, err)
		}
		return fmt.Errorf("listing %s: %w", plural(kind), err)
	}
	return printResponse(o.out, response, o.Output)
}

func printResponse(w io.Writer, response any, output string) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
		return nil
	case yamlFormat:
		marshalled, err := yaml.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
		return nil
	default:
		return printTable(w, response)
	}
}

func printTable(out io.Writer, response any) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	switch r := response.(type) {
	case *api.Project:
		printProjectsTable(w, *r)
	case api.ProjectList:
		printProjectsTable(w, r...)
	case api.WaveList:
		printWavesTable(w, r...)
	case api.GapList:
		printGapsTable(w, r...)
	case api.PassList:
		printPassesTable(w, r...)
	default:
		return fmt.Errorf("unknown resource type %T", response)
	}
	return w.Flush()
}

func printProjectsTable(w io.Writer, projects ...api.Project) {
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUPDATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Id, p.Name, p.Status, p.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func printWavesTable(w io.Writer, waves ...api.Wave) {
	fmt.Fprintln(w, "SEQ\tCOHORT\tWAVE\tSTATUS\tVMS\tDISK(GB)\tTOTAL(H)\tBOTTLENECK")
	for _, wv := range waves {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\t%.1f\t%.2f\t%s\n",
			wv.Sequence, wv.Cohort, wv.Index, wv.Status, wv.VmCount, wv.DiskGb, wv.TotalHours, wv.BottleneckVm)
	}
}

func printGapsTable(w io.Writer, gaps ...api.Gap) {
	fmt.Fprintln(w, "ID\tSCOPE\tTYPE\tRESOURCE\tSEVERITY\tSTATUS")
	for _, g := range gaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", g.Id, g.Scope, g.Type, g.Resource, g.Severity, g.Status)
	}
}

func printPassesTable(w io.Writer, passes ...api.Pass) {
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tCOHORT\tVMS\tFAILURES\tSTARTED")
	for _, p := range passes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			p.Id, p.Kind, p.Status, p.Cohort, p.VmsAffected, len(p.Failures), p.StartedAt.Format("2006-01-02 15:04"))
	}
}
