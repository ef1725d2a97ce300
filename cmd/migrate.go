package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/db"
	"github.com/mgijax/srcload/internal/qc"
	"github.com/mgijax/srcload/internal/resilience"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the development schema and QC report tables",
	Long:  "Applies pending embedded SQL migrations to the MGD development schema in lexicographic order, then creates the QC report tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "migrate: connect")
		}
		defer pool.Close()

		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("migrate")
		if err := resilience.Do(ctx, retry, func(ctx context.Context) error {
			return db.Migrate(ctx, pool)
		}); err != nil {
			return eris.Wrap(err, "migrate")
		}

		reporter, err := qc.NewSQLite(cfg.QC.DatabasePath)
		if err != nil {
			return err
		}
		defer reporter.Close() //nolint:errcheck
		if err := reporter.Migrate(ctx); err != nil {
			return err
		}

		zap.L().Info("all migrations applied successfully",
			zap.String("qc_database", cfg.QC.DatabasePath),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
