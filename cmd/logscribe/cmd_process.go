package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/types"
)

func init() {
	rootCmd.AddCommand(processCmd)
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every pending worklist row",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger, closeLog := setupLogging(cfg)
		defer closeLog()

		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		defer a.close()

		if err := a.validate(ctx); err != nil {
			return fmt.Errorf("setup validation failed: %w", err)
		}
		if _, err := a.openLedger(); err != nil {
			logger.Warn("run ledger disabled", "error", err)
		}
		runner, err := a.runner()
		if err != nil {
			return err
		}

		summary, err := runner.Run(ctx)
		if summary != nil {
			printSummary(os.Stdout, summary)
		}
		return err
	},
}

func printSummary(w io.Writer, s *types.BatchSummary) {
	fmt.Fprintln(w, "=== Processing Summary ===")
	fmt.Fprintf(w, "Total: %d\n", s.Total)
	fmt.Fprintf(w, "Processed: %d\n", s.Processed)
	fmt.Fprintf(w, "Successful: %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed: %d\n", s.Failed)
	fmt.Fprintln(w, "==========================")

	failures := s.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed conversions:")
	for _, r := range failures {
		fmt.Fprintf(w, "Row %d (%s): %s\n", r.Item.Row, r.Item.Locator, r.Error)
	}
}
