package main

import (
	"fmt"

	"github.com/md-rashed-zaman/agendafacil/libs/db"
	"github.com/md-rashed-zaman/agendafacil/libs/runtime"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations for the configured storage and catalog drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(s.Service)
			ctx := cmd.Context()

			targets := migrationTargets(s)
			if len(targets) == 0 {
				logger.Info("nothing to migrate", "storage_driver", s.StorageDriver, "catalog_driver", s.CatalogDriver)
				return nil
			}
			for _, target := range targets {
				switch target {
				case "postgres":
					pool, err := db.Open(ctx, s.DatabaseURL)
					if err != nil {
						return fmt.Errorf("open postgres: %w", err)
					}
					migrations, err := storage.PostgresMigrations()
					if err != nil {
						pool.Close()
						return err
					}
					applied, err := db.Migrate(ctx, pool, migrations)
					pool.Close()
					if err != nil {
						return err
					}
					logger.Info("postgres migrations applied", "applied", applied, "known", len(migrations))
				case "sqlite":
					// Opening a SQLite store applies its migrations.
					lite, err := storage.OpenSQLite(ctx, s.SQLitePath)
					if err != nil {
						return err
					}
					if err := lite.Close(); err != nil {
						return err
					}
					logger.Info("sqlite schema up to date", "path", s.SQLitePath)
				}
			}
			return nil
		},
	})
	return cmd
}

// migrationTargets lists the databases that need a schema, postgres first.
// Postgres is migrated when either the appointment store or the catalog lives there.
func migrationTargets(s settings) []string {
	var targets []string
	if s.StorageDriver == "postgres" || s.CatalogDriver == "postgres" {
		targets = append(targets, "postgres")
	}
	if s.StorageDriver == "sqlite" {
		targets = append(targets, "sqlite")
	}
	return targets
}
