package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jbweber/homelab/deptsvc/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deptsvc",
		Short:         "Department registry web service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "path to a YAML config file")
	pf.String("db-driver", "", "database driver (sqlite or postgres)")
	pf.String("db-path", "", "sqlite database file")
	pf.String("port", "", "HTTP listen port")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(), newMigrateCmd())
	return cmd
}

// loadConfig loads and validates the configuration, letting any flag set on
// the command line override file and environment values.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
