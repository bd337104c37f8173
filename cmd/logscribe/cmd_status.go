package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worklist, storage and last-run status",
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

		info, err := a.worklist.Describe(ctx)
		if err != nil {
			return fmt.Errorf("describe worklist: %w", err)
		}
		pending, err := a.worklist.Pending(ctx)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		store, err := a.store.Describe(ctx)
		if err != nil {
			return fmt.Errorf("describe storage: %w", err)
		}
		blobs, err := a.store.List(ctx)
		if err != nil {
			return fmt.Errorf("list storage: %w", err)
		}
		var size int64
		for _, b := range blobs {
			size += b.Size
		}

		rows := info.Rows - 1
		if rows < 0 {
			rows = 0
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "=== Status Report ===")
		fmt.Fprintf(w, "Worksheet:\t%s\n", info.Title)
		fmt.Fprintf(w, "Total rows:\t%s\n", humanize.Comma(int64(rows)))
		fmt.Fprintf(w, "Pending conversions:\t%s\n", humanize.Comma(int64(len(pending))))
		fmt.Fprintf(w, "Storage folder:\t%s\n", store.Name)
		if store.Reference != "" {
			fmt.Fprintf(w, "Storage link:\t%s\n", store.Reference)
		}
		fmt.Fprintf(w, "Files in folder:\t%s (%s)\n", humanize.Comma(int64(len(blobs))), humanize.Bytes(uint64(size)))
		fmt.Fprintf(w, "Source column:\t%s\n", cfg.Worklist.SourceColumn)
		fmt.Fprintf(w, "Destination column:\t%s\n", cfg.Worklist.DestinationColumn)
		fmt.Fprintf(w, "Batch size:\t%s\n", batchSizeLabel(cfg.Processing.MaxItemsPerBatch))
		fmt.Fprintf(w, "Skip existing:\t%t\n", cfg.Processing.SkipExisting)
		fmt.Fprintf(w, "Upload enabled:\t%t\n", cfg.Storage.EnableUpload)
		if err := lastRun(ctx, a, w); err != nil {
			logger.Warn("read ledger", "error", err)
		}
		fmt.Fprintln(w, "=====================")
		return w.Flush()
	},
}

func batchSizeLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.Comma(int64(n))
}

// lastRun prints the newest ledger entry, if the ledger is enabled.
func lastRun(ctx context.Context, a *app, w *tabwriter.Writer) error {
	l, err := a.openLedger()
	if err != nil || l == nil {
		return err
	}
	runs, err := l.RecentRuns(ctx, 1)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(w, "Last run:\tnever\n")
		return nil
	}
	r := runs[0]
	fmt.Fprintf(w, "Last run:\t%s (%s, %d succeeded, %d failed)\n",
		r.ID.Short(), humanize.Time(r.StartedAt), r.Succeeded, r.Failed)
	return nil
}
