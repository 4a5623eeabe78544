package main

import (
	"os"

	"github.com/kubev2v/wave-planner/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	command := NewPlannerCtlCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewPlannerCtlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planner [flags] [options]",
		Short: "planner plans migration waves, offline or through the wave planner service.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdPlan())
	cmd.AddCommand(cli.NewCmdConfigure())
	cmd.AddCommand(cli.NewCmdGet())
	cmd.AddCommand(cli.NewCmdRun())
	cmd.AddCommand(cli.NewCmdExport())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
