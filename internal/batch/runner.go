// internal/batch/runner.go
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/logscribe/internal/convert"
	"github.com/user/logscribe/internal/types"
)

var (
	// ErrUploadDisabled fails every item while storage uploads are turned off.
	ErrUploadDisabled = errors.New("storage upload is disabled")
	// ErrNoDocuments fails an item whose source produced no conversations.
	ErrNoDocuments = errors.New("no documents were generated")
)

// ReferenceSeparator joins the references of a multi-conversation item.
const ReferenceSeparator = ", "

// Converter turns one source table into output documents.
type Converter interface {
	Convert(ctx context.Context, data []byte) ([]convert.Document, error)
}

// Recorder persists batch history.
type Recorder interface {
	StartRun(ctx context.Context, id types.BatchID, startedAt time.Time) error
	RecordItem(ctx context.Context, id types.BatchID, result *types.ItemResult) error
	FinishRun(ctx context.Context, summary *types.BatchSummary) error
}

// Options tunes a Runner.
type Options struct {
	// MaxItems caps the items taken per batch; 0 means no cap.
	MaxItems      int
	SkipExisting  bool
	UploadEnabled bool
	// ItemDelay is slept between items.
	ItemDelay time.Duration
	// LocalDir, when set, receives a copy of every generated document.
	LocalDir string
	Retry    *RetryPolicy
	Failure  FailurePolicy
}

// Runner processes pending work items one at a time.
type Runner struct {
	worklist  types.Worklist
	store     types.BlobStore
	fetcher   types.Fetcher
	converter Converter
	opts      Options

	recorder  Recorder
	notifiers []types.Notifier
	logger    *slog.Logger
}

// RunnerOption configures optional collaborators on a Runner.
type RunnerOption func(*Runner)

// WithRecorder records every batch and item outcome.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithNotifiers sends each finished batch summary to ns.
func WithNotifiers(ns ...types.Notifier) RunnerOption {
	return func(r *Runner) { r.notifiers = append(r.notifiers, ns...) }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner wires a Runner to its collaborators.
func NewRunner(worklist types.Worklist, store types.BlobStore, fetcher types.Fetcher, conv Converter, opts Options, ropts ...RunnerOption) *Runner {
	if opts.Retry == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	r := &Runner{
		worklist:  worklist,
		store:     store,
		fetcher:   fetcher,
		converter: conv,
		opts:      opts,
		logger:    slog.Default(),
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Run processes the pending items. Item failures are reported in the
// summary; the returned error is set only when the batch itself could not
// run (the worklist could not be read, or ctx was cancelled).
func (r *Runner) Run(ctx context.Context) (*types.BatchSummary, error) {
	summary := &types.BatchSummary{
		ID:        types.NewBatchID(),
		StartedAt: time.Now(),
		Results:   []*types.ItemResult{},
	}
	logger := r.logger.With("batch", summary.ID.Short())
	r.record(ctx, logger, func(ctx context.Context, rec Recorder) error {
		return rec.StartRun(ctx, summary.ID, summary.StartedAt)
	})

	var items []types.WorkItem
	err := r.opts.Retry.Execute(ctx, func() error {
		var err error
		items, err = r.worklist.Pending(ctx)
		return err
	})
	if err != nil {
		err = fmt.Errorf("list pending items: %w", err)
		r.finish(ctx, logger, summary)
		return summary, err
	}

	if r.opts.MaxItems > 0 && len(items) > r.opts.MaxItems {
		logger.Info("limiting batch size", "pending", len(items), "max", r.opts.MaxItems)
		items = items[:r.opts.MaxItems]
	}
	summary.Total = len(items)
	logger.Info("batch started", "items", len(items))

	var runErr error
	for i, item := range items {
		if i > 0 && r.opts.ItemDelay > 0 {
			if err := sleep(ctx, r.opts.ItemDelay); err != nil {
				runErr = err
				break
			}
		}

		result := r.processItem(ctx, logger, item)
		summary.Results = append(summary.Results, result)
		summary.Processed++
		if result.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		r.record(ctx, logger, func(ctx context.Context, rec Recorder) error {
			return rec.RecordItem(ctx, summary.ID, result)
		})

		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !r.opts.Failure.Continue(result) {
			logger.Error("halting batch after failed item", "locator", result.Item.Locator)
			summary.Halted = true
			break
		}
	}
	if runErr != nil {
		summary.Halted = true
		runErr = fmt.Errorf("batch interrupted: %w", runErr)
	}

	r.finish(ctx, logger, summary)
	logger.Info("batch finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"halted", summary.Halted,
	)
	return summary, runErr
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, summary *types.BatchSummary) {
	summary.FinishedAt = time.Now()
	r.record(ctx, logger, func(ctx context.Context, rec Recorder) error {
		return rec.FinishRun(ctx, summary)
	})
	// Notifications go out even when ctx was cancelled.
	bg := context.WithoutCancel(ctx)
	for _, n := range r.notifiers {
		if err := n.Notify(bg, summary); err != nil {
			logger.Warn("notify failed", "error", err)
		}
	}
}

// record writes to the ledger, ignoring cancellation of ctx.
func (r *Runner) record(ctx context.Context, logger *slog.Logger, fn func(context.Context, Recorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), r.recorder); err != nil {
		logger.Warn("ledger write failed", "error", err)
	}
}

// processItem runs one item end to end. The worklist is updated only after
// every document has been persisted.
func (r *Runner) processItem(ctx context.Context, logger *slog.Logger, item types.WorkItem) *types.ItemResult {
	start := time.Now()
	result := &types.ItemResult{ID: types.NewItemID(), Item: item}
	logger = logger.With("locator", item.Locator)

	refs, docs, err := r.convertAndStore(ctx, logger, item)
	result.Documents = docs
	if err == nil {
		result.References = refs
		joined := strings.Join(refs, ReferenceSeparator)
		err = r.opts.Retry.Execute(ctx, func() error {
			return r.worklist.Complete(ctx, item, joined)
		})
		if err != nil {
			err = fmt.Errorf("update worklist: %w", err)
		}
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.References = nil
		result.Fail(err)
		logger.Error("item failed", "error", err)
		return result
	}
	logger.Info("item converted", "documents", len(docs), "duration", result.Duration.Round(time.Millisecond))
	return result
}

func (r *Runner) convertAndStore(ctx context.Context, logger *slog.Logger, item types.WorkItem) ([]string, []string, error) {
	var data []byte
	err := r.opts.Retry.Execute(ctx, func() error {
		var err error
		data, err = r.fetcher.Fetch(ctx, item.SourceLocator)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", item.SourceLocator, err)
	}

	docs, err := r.converter.Convert(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("convert: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, ErrNoDocuments
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}

	if r.opts.LocalDir != "" {
		if err := writeLocal(r.opts.LocalDir, docs); err != nil {
			return nil, names, err
		}
	}
	if !r.opts.UploadEnabled {
		return nil, names, ErrUploadDisabled
	}

	refs := make([]string, 0, len(docs))
	for _, d := range docs {
		ref, err := r.persist(ctx, logger, d)
		if err != nil {
			return nil, names, fmt.Errorf("upload %s: %w", d.Name, err)
		}
		refs = append(refs, ref)
	}
	return refs, names, nil
}

// persist stores one document. With SkipExisting an already stored blob of
// the same name is reused; otherwise same-named blobs are removed first.
func (r *Runner) persist(ctx context.Context, logger *slog.Logger, d convert.Document) (string, error) {
	if r.opts.SkipExisting {
		existing, err := r.store.Find(ctx, d.Name)
		switch {
		case err == nil:
			logger.Info("reusing existing blob", "name", d.Name)
			return existing.Reference, nil
		case !errors.Is(err, types.ErrNotFound):
			return "", fmt.Errorf("find existing: %w", err)
		}
	} else {
		var removed int
		err := r.opts.Retry.Execute(ctx, func() error {
			var err error
			removed, err = r.store.Delete(ctx, d.Name)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("remove old copies: %w", err)
		}
		if removed > 0 {
			logger.Info("removed old copies", "name", d.Name, "count", removed)
		}
	}

	var blob *types.Blob
	err := r.opts.Retry.Execute(ctx, func() error {
		var err error
		blob, err = r.store.Put(ctx, d.Name, d.Data)
		return err
	})
	if err != nil {
		return "", err
	}
	return blob.Reference, nil
}

func writeLocal(dir string, docs []convert.Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, d := range docs {
		path := filepath.Join(dir, d.Name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, d.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", d.Name, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", d.Name, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
