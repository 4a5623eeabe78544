package cli

import (
	"fmt"

	"github.com/kubev2v/wave-planner/internal/client"
	"github.com/spf13/cobra"
)

func NewCmdConfigure() *cobra.Command {
	o := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Store the server address used by the other commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.ServerUrl == "" {
				return fmt.Errorf("--server-url is required")
			}
			if err := client.WriteConfig(o.ConfigFilePath, o.ServerUrl, o.User); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", o.ConfigFilePath)
			return nil
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}
