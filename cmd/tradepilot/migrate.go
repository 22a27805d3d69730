package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/tradepilot/tradepilot/internal/db"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sqlDB, err := openMigrationDB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return db.NewMigrator(sqlDB, migrateDir).Migrate(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sqlDB, err := openMigrationDB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return db.NewMigrator(sqlDB, migrateDir).Status(cmd.Context())
	},
}

func openMigrationDB() (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return sqlDB, nil
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrateDir, "dir", "migrations", "migrations directory")
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
