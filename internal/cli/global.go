package cli

import (
	"github.com/kubev2v/wave-planner/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type GlobalOptions struct {
	ConfigFilePath string
	ServerUrl      string
	User           string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: client.DefaultConfigPath(),
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFilePath, "config", "c", o.ConfigFilePath, "Path to the client configuration file")
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the server, overrides the configuration file")
	fs.StringVar(&o.User, "user", o.User, "Operator name sent to servers using header authentication")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

// Client prefers --server-url and falls back to the configuration file.
func (o *GlobalOptions) Client() (*client.Client, error) {
	if o.ServerUrl != "" {
		config := &client.Config{Service: client.Service{Server: o.ServerUrl, User: o.User}}
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return client.NewFromConfig(config), nil
	}
	config, err := client.ParseConfigFile(o.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	if o.User != "" {
		config.Service.User = o.User
	}
	return client.NewFromConfig(config), nil
}
