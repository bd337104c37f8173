package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/ledger"
	"github.com/user/logscribe/internal/types"
)

var runsLimit int

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the batch history",
}

func openRunLedger() (*ledger.Ledger, error) {
	cfg := loadConfig()
	if cfg.Ledger.Path == "" {
		return nil, errors.New("run ledger is disabled (ledger.path is empty)")
	}
	return ledger.Open(cfg.Ledger.Path)
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openRunLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		runs, err := l.RecentRuns(context.Background(), runsLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tTOTAL\tOK\tFAILED\tSTATUS")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.ID.Short(),
				humanize.Time(r.StartedAt),
				runDuration(r),
				r.Total,
				r.Succeeded,
				r.Failed,
				runStatus(r),
			)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one batch and its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openRunLedger()
		if err != nil {
			return err
		}
		defer l.Close()

		ctx := context.Background()
		run, err := l.Run(ctx, args[0])
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("no run matches %q", args[0])
			}
			return err
		}
		items, err := l.Items(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("list items: %w", err)
		}

		fmt.Printf("Run:       %s\n", run.ID)
		fmt.Printf("Started:   %s (%s)\n", run.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.StartedAt))
		fmt.Printf("Duration:  %s\n", runDuration(*run))
		fmt.Printf("Status:    %s\n", runStatus(*run))
		fmt.Printf("Items:     %d total, %d processed, %d succeeded, %d failed\n",
			run.Total, run.Processed, run.Succeeded, run.Failed)
		if len(items) == 0 {
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tLOCATOR\tDURATION\tRESULT")
		for _, it := range items {
			result := strings.Join(it.References, ", ")
			if it.Error != "" {
				result = "error: " + it.Error
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", it.Row, it.Locator, it.Duration.Round(time.Millisecond), result)
		}
		return w.Flush()
	},
}

func runDuration(r ledger.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func runStatus(r ledger.Run) string {
	switch {
	case r.FinishedAt == nil:
		return "running"
	case r.Halted:
		return "halted"
	case r.Failed > 0:
		return "failed"
	default:
		return "ok"
	}
}
