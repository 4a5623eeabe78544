package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kubev2v/wave-planner/pkg/version"
	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print planner version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
				return fmt.Errorf("output format must be one of %v", legalOutputTypes)
			}
			return o.Run(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json, yaml).")
	return cmd
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	switch o.Output {
	case jsonFormat:
		data, err := json.MarshalIndent(versionInfo, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case yamlFormat:
		data, err := yaml.Marshal(versionInfo)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		fmt.Printf("Planner Version: %s\n", versionInfo.String())
	}
	return nil
}
