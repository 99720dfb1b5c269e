package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/meter-fleet/db"
	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/internal/database"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "sql migrations directory on disk (defaults to the embedded db/migrations)")
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Database.Driver == internal.DatabaseDriverSQLite {
		// sqlite schemas come from the gorm models when the database is opened
		conn, err := database.Open(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.LoggerWrapper().Info("sqlite schema is up to date", "source", cfg.Database.Source)
		return conn.Close()
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		log.Fatalf("goose: failed to open DB: %v\n", err)
	}
	defer sqlDB.Close()

	goose.SetTableName("schema_migrations")

	dir := migrateDir
	if dir == "" {
		goose.SetBaseFS(db.Migrations)
		dir = "migrations"
	}

	command := "up"
	if migrateRollback {
		command = "down"
	}

	if err := goose.RunContext(ctx, command, sqlDB, dir); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}

	return nil
}
