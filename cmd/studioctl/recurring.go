package main

import (
	"fmt"
	"time"

	"github.com/photoproos/studio_backend/config"
	"github.com/photoproos/studio_backend/models"
	"github.com/photoproos/studio_backend/utils"
	"github.com/photoproos/studio_backend/workflow"
	"github.com/spf13/cobra"
)

func newRecurringCmd() *cobra.Command {
	recurring := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring invoice jobs",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Materialize every recurring invoice cycle due on or before --as-of",
		Example: `  studioctl recurring run
  studioctl recurring run --as-of 2025-03-01 --concurrency 8`,
		Args: cobra.NoArgs,
		RunE: runRecurring,
	}
	run.Flags().String("as-of", "", "Run date (YYYY-MM-DD, default: today in UTC)")
	run.Flags().Int("concurrency", config.RecurringRunnerConcurrency(), "Agreements processed in parallel")
	run.Flags().Int("max-catch-up", config.RecurringMaxCatchUp(), "Cycles materialized per agreement in one run")

	due := &cobra.Command{
		Use:   "due",
		Short: "List recurring invoices due on or before --as-of without materializing them",
		Args:  cobra.NoArgs,
		RunE:  listDueRecurring,
	}
	due.Flags().String("as-of", "", "Run date (YYYY-MM-DD, default: today in UTC)")
	due.Flags().Int("limit", 100, "Maximum rows")

	recurring.AddCommand(run, due)
	return recurring
}

func asOfFlag(cmd *cobra.Command) (time.Time, error) {
	value, _ := cmd.Flags().GetString("as-of")
	if value == "" {
		return utils.ToDate(time.Now()), nil
	}
	return utils.ParseDate(value)
}

func runRecurring(cmd *cobra.Command, _ []string) error {
	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}
	ctx, db, err := connect(cmd)
	if err != nil {
		return err
	}
	// Redis is optional here too; without it the runner relies on row locks and idempotency keys.
	if err := config.ConnectRedis(); err != nil {
		config.GetLogger().WithField("field", "redis").Warn("running without redis locks: " + err.Error())
	}

	runner := workflow.NewRecurringInvoiceRunner(db, config.GetLogger())
	runner.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	runner.MaxCatchUp, _ = cmd.Flags().GetInt("max-catch-up")

	summary, err := runner.Run(ctx, asOf)
	if err != nil {
		return fmt.Errorf("recurring run: %w", err)
	}
	if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d recurring invoice(s) failed", summary.Failed)
	}
	return nil
}

func listDueRecurring(cmd *cobra.Command, _ []string) error {
	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	ctx, _, err := connect(cmd)
	if err != nil {
		return err
	}
	due, err := models.ListDueRecurringInvoices(ctx, asOf, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), due)
}
