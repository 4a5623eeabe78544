package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	api "github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

var passKinds = []string{"all", "classify", "estimate", "group", "schedule", "readiness"}

type RunOptions struct {
	GlobalOptions

	Project            string
	Cohort             string
	IgnoreOverrides    bool
	RefreshDestination bool
	Output             string

	out io.Writer
}

func DefaultRunOptions() *RunOptions {
	return &RunOptions{
		GlobalOptions: DefaultGlobalOptions(),
		out:           os.Stdout,
	}
}

func NewCmdRun() *cobra.Command {
	o := DefaultRunOptions()
	cmd := &cobra.Command{
		Use:   "run PASS",
		Short: fmt.Sprintf("Run a planning pass on a project. PASS is one of: %s.", strings.Join(passKinds, ", ")),
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

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Project, "project", "p", o.Project, "ID of the project")
	fs.StringVar(&o.Cohort, "cohort", o.Cohort, "Restrict the pass to one cohort")
	fs.BoolVar(&o.IgnoreOverrides, "ignore-overrides", o.IgnoreOverrides, "Plan as if no operator override was set")
	fs.BoolVar(&o.RefreshDestination, "refresh-destination", o.RefreshDestination, "Reload the destination inventory before the readiness check")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *RunOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.out = cmd.OutOrStdout()
	return nil
}

func (o *RunOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !funk.ContainsString(passKinds, args[0]) {
		return fmt.Errorf("pass must be one of %s", strings.Join(passKinds, ", "))
	}
	if _, err := uuid.Parse(o.Project); err != nil {
		return fmt.Errorf("invalid --project: %w", err)
	}
	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *RunOptions) Run(ctx context.Context, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	req := api.PassRequest{
		IgnoreOverrides:    o.IgnoreOverrides,
		RefreshDestination: o.RefreshDestination,
	}
	if o.Cohort != "" {
		req.Cohort = &o.Cohort
	}
	passes, err := c.RunPass(ctx, uuid.MustParse(o.Project), args[0], req)
	if err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return printResponse(o.out, passes, o.Output)
}
