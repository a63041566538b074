package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/logging"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank transactions against open receivables",
		Long: `reconcile runs the reconciliation engine against the configured database.

Settings come from the environment (DATABASE_URL, DB_DRIVER, LOG_LEVEL,
LOG_FORMAT, MATCHING_CONFIG), optionally seeded from a .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default: .env)")

	cmd.AddCommand(runCmd(opts))
	cmd.AddCommand(revertCmd(opts))
	cmd.AddCommand(ignoreCmd(opts))
	cmd.AddCommand(resetCmd(opts))
	return cmd
}

// openService wires settings, logging and the database into a service.
func (o *rootOptions) openService(cmd *cobra.Command, extra ...service.Option) (*service.ReconciliationService, func(), error) {
	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	settings, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.Setup(cmd.ErrOrStderr(), settings.LogLevel, settings.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	db, err := config.InitDB(settings)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = sqlDB.Close() }

	if err := config.Migrate(db); err != nil {
		closeDB()
		return nil, nil, err
	}

	opts := append([]service.Option{service.WithLogger(logger)}, extra...)
	svc, err := service.NewReconciliationService(db, settings.Matching, settings.Policy, opts...)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("building reconciliation service: %w", err)
	}
	return svc, closeDB, nil
}
