package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a dataset from a source",
	Long:  "Commands for pulling raw data from local files, generic REST APIs, and Socrata resources.",
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// recordRun brackets one ingest with ledger entries: a running row up
// front, then completed with the row count or failed with the cause.
// Ledger write failures are logged, never fatal to the ingest itself.
func recordRun(ctx context.Context, dataset, source string, fn func() (int, error)) error {
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close() //nolint:errcheck

	run, err := led.Start(ctx, dataset, source)
	if err != nil {
		return err
	}

	rows, err := fn()
	if err != nil {
		if ferr := led.Fail(ctx, run.ID, err); ferr != nil {
			zap.L().Warn("ledger: record failure", zap.Error(ferr))
		}
		return err
	}

	if cerr := led.Complete(ctx, run.ID, rows); cerr != nil {
		zap.L().Warn("ledger: record completion", zap.Error(cerr))
	}

	zap.L().Info("run recorded",
		zap.String("run_id", run.ID),
		zap.String("dataset", dataset),
		zap.Int("rows", rows),
	)
	return nil
}
