package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/deptsvc/internal/migrations"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ds, err := cfg.OpenDatabase(ctx)
			if err != nil {
				return err
			}
			defer ds.Close()

			migrator := migrations.NewMigrator(ds)
			for _, migration := range migrations.GetInitialMigrations() {
				migrator.AddMigration(migration)
			}

			if down {
				version, err := migrator.RollbackLast(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back version %d\n", version)
				return nil
			}

			if err := migrator.RunMigrations(ctx); err != nil {
				return err
			}
			version, err := migrator.GetCurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
