package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonnyWalker81/pulse/backend/internal/config"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/repository/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the local SQLite schema",
	Long:  `Create or upgrade the SQLite schema used by the sqlite storage driver. Supabase schemas are managed by Supabase migrations.`,
	RunE:  runMigrate,
}

var dbPath string

func init() {
	migrateCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	seedCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
}

// loadSQLiteConfig loads configuration for commands that only work against
// the local store
func loadSQLiteConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = dbPath
	}
	if cfg.Storage.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("storage driver is %q; set PULSE_STORAGE_DRIVER=sqlite or pass --db", cfg.Storage.Driver)
	}
	if _, err := setupLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSQLiteConfig()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cmd.Context(), cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	defer store.Close()

	logger.Info("schema ready", logger.String("path", cfg.Storage.SQLitePath))
	return nil
}
