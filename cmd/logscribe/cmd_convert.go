package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/logscribe/internal/batch"
	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/convert"
	"github.com/user/logscribe/internal/types"
)

var (
	convertOut  string
	convertJobs int
)

func init() {
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", ".", "output directory")
	convertCmd.Flags().IntVarP(&convertJobs, "jobs", "j", 4, "sources fetched and converted concurrently")
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert <csv>...",
	Short: "Convert CSV logs to JSON transcripts without touching the worklist",
	Long: `Convert reads each CSV (a local path or a download link), runs the
configured conversion pipeline and writes the transcripts to --out.
Worklist, storage and Google settings are not required.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateConversion(); err != nil {
			return err
		}
		logger, closeLog := setupLogging(cfg)
		defer closeLog()

		ctx, cancel := signalContext()
		defer cancel()

		conv, err := convert.New(cfg, logger)
		if err != nil {
			return err
		}
		fetcher := batch.NewHTTPFetcher(cfg.Processing.FetchTimeout)

		return convertSources(ctx, conv, fetcher, args, convertOut, cfg.Naming.Extension, convertJobs, os.Stdout, logger)
	},
}

type convertedSource struct {
	docs []convert.Document
	err  error
}

// convertSources fetches and converts up to jobs sources at a time, then
// writes the documents in source order. Names are unique across all
// sources, so conversations sharing an id never overwrite each other.
func convertSources(ctx context.Context, conv batch.Converter, fetcher types.Fetcher, sources []string, outDir, ext string, jobs int, out io.Writer, logger *slog.Logger) error {
	if jobs < 1 {
		jobs = 1
	}
	results := make([]convertedSource, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, src := range sources {
		g.Go(func() error {
			data, err := fetcher.Fetch(gctx, src)
			if err != nil {
				results[i].err = fmt.Errorf("read source: %w", err)
				return nil
			}
			results[i].docs, results[i].err = conv.Convert(gctx, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	names := convert.NewNameSet(ext)
	var failed int
	for i, src := range sources {
		r := results[i]
		if r.err != nil {
			logger.Error("convert failed", "source", src, "error", r.err)
			failed++
			continue
		}
		if len(r.docs) == 0 {
			logger.Warn("no conversations found", "source", src)
			continue
		}
		for _, d := range r.docs {
			path := filepath.Join(outDir, names.Claim(d.Name))
			if err := writeFileAtomic(path, d.Data); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s -> %s (%d messages)\n", src, path, d.Messages)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
