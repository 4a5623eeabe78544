package main

import (
	"fmt"

	"github.com/kubev2v/wave-planner/internal/config"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/pkg/log"
	"github.com/kubev2v/wave-planner/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "planner-api",
	Short: "Wave planner api server",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}

// setup loads the configuration from the environment and installs the global logger.
func setup() (*config.Config, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("reading configuration: %w", err)
	}

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger := log.InitLog(logLvl)
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}

// migrate applies the goose migrations when a folder is configured, the gorm
// schema otherwise.
func migrate(cfg *config.Config, db *gorm.DB) error {
	if cfg.Service.MigrationFolder != "" {
		if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
			return fmt.Errorf("running migrations from %s: %w", cfg.Service.MigrationFolder, err)
		}
		version, err := migrations.Version(db)
		if err == nil {
			zap.S().Infow("database migrated", "version", version)
		}
		return nil
	}
	if err := store.InitialMigration(db); err != nil {
		return fmt.Errorf("running initial migration: %w", err)
	}
	return nil
}
