package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/recruit-engine/internal/candidates"
	"github.com/jonathan/recruit-engine/internal/config"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/logging"
	"github.com/jonathan/recruit-engine/internal/resolver"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute every job's applicant count from its candidates",
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(config.NewLogConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dbCfg, err := config.NewDatabaseConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	database, err := db.Connect(ctx, dbCfg.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	lifecycle := candidates.New(database, resolver.New(database, logger), logger)
	n, err := lifecycle.ReconcileApplicantCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d job(s)\n", n)
	return nil
}
