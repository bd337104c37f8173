package main

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/user/logscribe/internal/batch"
	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/convert"
	"github.com/user/logscribe/internal/google"
	"github.com/user/logscribe/internal/ledger"
	"github.com/user/logscribe/internal/notify"
	"github.com/user/logscribe/internal/state"
	"github.com/user/logscribe/internal/types"
)

var _ batch.Recorder = (*ledger.Ledger)(nil)

// app holds the collaborators built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	worklist types.Worklist
	store    types.BlobStore
	fetcher  types.Fetcher
	ledger   *ledger.Ledger

	googleOpts []option.ClientOption
	drive      *drive.Service
}

func usesGoogle(cfg *config.Config) bool {
	return cfg.Worklist.Backend == "sheets" || cfg.Storage.Backend == "drive"
}

// newApp builds the worklist, blob store and fetcher for cfg. The ledger is
// opened separately by openLedger.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if usesGoogle(cfg) {
		opts, err := google.ClientOptions(ctx, cfg.Google.Auth, cfg.Google.CredentialsPath, cfg.Google.TokenPath)
		if err != nil {
			return nil, fmt.Errorf("google auth: %w", err)
		}
		a.googleOpts = opts
		if a.drive, err = drive.NewService(ctx, opts...); err != nil {
			return nil, fmt.Errorf("create drive client: %w", err)
		}
	}

	switch cfg.Worklist.Backend {
	case "sheets":
		svc, err := sheets.NewService(ctx, a.googleOpts...)
		if err != nil {
			return nil, fmt.Errorf("create sheets client: %w", err)
		}
		wl, err := google.NewSheetsWorklist(svc, cfg.Worklist.SpreadsheetURL, cfg.Worklist.Worksheet,
			cfg.Worklist.SourceColumn, cfg.Worklist.DestinationColumn, logger)
		if err != nil {
			return nil, err
		}
		a.worklist = wl
	default:
		a.worklist = state.NewCSVWorklist(cfg.Worklist.Path, cfg.Worklist.SourceColumn, cfg.Worklist.DestinationColumn)
	}

	switch cfg.Storage.Backend {
	case "drive":
		a.store = google.NewDriveStore(a.drive, cfg.Storage.FolderName, cfg.Storage.MakePublic, logger)
	default:
		a.store = state.NewBlobStore(cfg.Storage.LocalDir)
	}

	httpFetcher := batch.NewHTTPFetcher(cfg.Processing.FetchTimeout)
	if a.drive != nil {
		a.fetcher = google.NewDriveFetcher(a.drive, httpFetcher, logger)
	} else {
		a.fetcher = httpFetcher
	}
	return a, nil
}

// openLedger opens the run ledger, or returns nil when it is disabled.
func (a *app) openLedger() (*ledger.Ledger, error) {
	if a.cfg.Ledger.Path == "" {
		return nil, nil
	}
	l, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

func (a *app) close() {
	if a.ledger != nil {
		a.ledger.Close()
		a.ledger = nil
	}
}

// validate checks that the worklist and blob store are reachable.
func (a *app) validate(ctx context.Context) error {
	info, err := a.worklist.Describe(ctx)
	if err != nil {
		return fmt.Errorf("worklist: %w", err)
	}
	if _, _, err := state.Columns(info.Headers, a.cfg.Worklist.SourceColumn, a.cfg.Worklist.DestinationColumn); err != nil {
		return fmt.Errorf("worklist: %w", err)
	}
	if _, err := a.store.Describe(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// runner builds a batch runner wired to every configured collaborator.
func (a *app) runner() (*batch.Runner, error) {
	cfg := a.cfg
	conv, err := convert.New(cfg, a.logger)
	if err != nil {
		return nil, err
	}

	opts := batch.Options{
		MaxItems:      cfg.Processing.MaxItemsPerBatch,
		SkipExisting:  cfg.Processing.SkipExisting,
		UploadEnabled: cfg.Storage.EnableUpload,
		ItemDelay:     cfg.Processing.ItemDelay,
		LocalDir:      cfg.Output.LocalDir,
		Retry: &batch.RetryPolicy{
			MaxAttempts:  cfg.ErrorHandling.MaxRetries,
			InitialDelay: cfg.ErrorHandling.RetryDelay,
			Multiplier:   2.0,
			MaxDelay:     cfg.ErrorHandling.MaxRetryDelay,
		},
		Failure: batch.FailurePolicy{ContinueOnError: cfg.ErrorHandling.ContinueOnError},
	}
	ropts := []batch.RunnerOption{batch.WithLogger(a.logger)}
	if a.ledger != nil {
		ropts = append(ropts, batch.WithRecorder(a.ledger))
	}
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, notify.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("telegram notifications disabled", "error", err)
		} else {
			ropts = append(ropts, batch.WithNotifiers(tg))
		}
	}
	return batch.NewRunner(a.worklist, a.store, a.fetcher, conv, opts, ropts...), nil
}
