package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

var legalExportFormats = []string{"xlsx", "csv"}

type ExportOptions struct {
	GlobalOptions

	Project string
	Format  string
	File    string
}

func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Format:        "xlsx",
	}
}

func NewCmdExport() *cobra.Command {
	o := DefaultExportOptions()
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the wave plan of a project as a workbook or CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

func (o *ExportOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Project, "project", "p", o.Project, "ID of the project")
	fs.StringVar(&o.Format, "format", o.Format, "Export format. One of: (xlsx, csv).")
	fs.StringVarP(&o.File, "file", "f", o.File, "Output file, defaults to plan-<project>.<format>")
}

func (o *ExportOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if _, err := uuid.Parse(o.Project); err != nil {
		return fmt.Errorf("invalid --project: %w", err)
	}
	if !funk.ContainsString(legalExportFormats, o.Format) {
		return fmt.Errorf("format must be one of %v", legalExportFormats)
	}
	return nil
}

func (o *ExportOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	content, err := c.Export(ctx, uuid.MustParse(o.Project), o.Format)
	if err != nil {
		return fmt.Errorf("exporting plan: %w", err)
	}
	file := o.File
	if file == "" {
		file = fmt.Sprintf("plan-%s.%s", o.Project, o.Format)
	}
	if err := os.WriteFile(file, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}
	fmt.Printf("plan written to %s\n", file)
	return nil
}
