package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/invweb/internal/web/app"
)

func migrateCmd() *cobra.Command {
	var (
		dbFile string
		down   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the audit journal migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbFile == "" {
				cfg, err := app.LoadConfig()
				if err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
				dbFile = cfg.DatabaseFile
			}

			db, err := app.OpenDatabase(dbFile)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if down {
				err = db.RollbackMigrations()
			} else {
				err = db.ApplyMigrations()
			}
			if err != nil {
				return err
			}

			version, dirty, err := db.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (dirty: %t)\n", dbFile, version, dirty)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbFile, "db", "", "Database file (default: WEB_DATABASE_FILE)")
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")

	return cmd
}
