package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/batch"
	"github.com/user/logscribe/internal/scheduler"
	"github.com/user/logscribe/internal/server"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the worklist on a schedule and serve the control API",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger, closeLog := setupLogging(cfg)
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer a.close()

	if err := a.validate(ctx); err != nil {
		return fmt.Errorf("setup validation failed: %w", err)
	}
	l, err := a.openLedger()
	if err != nil {
		logger.Warn("run ledger disabled", "error", err)
	}
	runner, err := a.runner()
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Processing.Schedule, batchJob(runner, logger), logger)
	if err != nil {
		return err
	}

	pidPath := cfg.Processing.PIDFile
	if err := writePIDFile(pidPath); err != nil {
		return err
	}
	if pidPath != "" {
		defer os.Remove(pidPath)
	}

	sched.Start(ctx)
	defer sched.Stop()

	if cfg.Server.Enabled {
		var runs server.RunStore
		if l != nil {
			runs = l
		}
		srv := server.New(sched, runs, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
				logger.Error("control server error", "error", err)
			}
		}()
	}

	logger.Info("logscribe watching",
		"schedule", cfg.Processing.Schedule,
		"worklist", cfg.Worklist.Backend,
		"storage", cfg.Storage.Backend,
		"server", cfg.Server.Enabled,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGUSR1:
			if !sched.Trigger() {
				logger.Info("batch already running, ignoring SIGUSR1")
			}
			continue
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				logger.Error("failed to get executable path", "error", err)
				continue
			}
			cancel()
			sched.Stop()
			a.close()
			if pidPath != "" {
				os.Remove(pidPath)
			}
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				return fmt.Errorf("re-exec: %w", err)
			}
		}
		logger.Info("shutting down", "signal", sig)
		cancel()
		return nil
	}
}

// batchJob adapts a runner to the scheduler.
func batchJob(runner *batch.Runner, logger *slog.Logger) scheduler.Job {
	return func(ctx context.Context) {
		summary, err := runner.Run(ctx)
		if err != nil {
			logger.Error("batch failed", "error", err)
			return
		}
		if summary.Total == 0 {
			logger.Debug("no pending items")
		}
	}
}
