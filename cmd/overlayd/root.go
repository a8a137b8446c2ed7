package main

import (
	"os"

	"github.com/spf13/cobra"

	"overlayd/internal/config"
)

// options carries the resolved configuration from the root command into its
// subcommands.
type options struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "overlayd",
		Short:         "Selection-aware completion daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (.yaml, .json or .toml); defaults to $XDG_CONFIG_HOME/overlayd/config.yaml when present")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults OVERLAYD_LOG_LEVEL or info)")

	root.AddCommand(newServeCmd(opts), newProbeCmd(opts), newMemtierCmd(opts))
	return root
}

// resolve loads the config file, applies the environment and flag overrides
// and fills defaults.
func (o *options) resolve() error {
	path := o.configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	var cfg config.Config
	if path != "" {
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
	}
	cfg = cfg.ApplyEnv(os.Getenv)
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	o.cfg = cfg
	return nil
}
