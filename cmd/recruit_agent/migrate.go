package main

import (
	"context"
	"time"

	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(config.NewLogConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbCfg, err := config.NewDatabaseConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	database, err := db.Connect(ctx, dbCfg.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Schema applied")
	return nil
}
