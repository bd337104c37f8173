package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/config"
)

var (
	cfgPath       string
	flagValidate  bool
	flagStatus    bool
	flagProcess   bool
	flagEnableUp  bool
	flagDisableUp bool
)

var rootCmd = &cobra.Command{
	Use:   "logscribe",
	Short: "Convert conversation-log CSV files into JSON transcripts",
	Long: `logscribe reads a worklist of CSV conversation logs, rebuilds each
conversation as a JSON transcript and writes the result link back to the
worklist.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "config file path")
	rootCmd.Flags().BoolVar(&flagValidate, "validate", false, "validate setup and exit")
	rootCmd.Flags().BoolVar(&flagStatus, "status", false, "show status report and exit")
	rootCmd.Flags().BoolVar(&flagProcess, "process", false, "process all pending conversions")
	rootCmd.Flags().BoolVar(&flagEnableUp, "enable-upload", false, "enable storage uploads")
	rootCmd.Flags().BoolVar(&flagDisableUp, "disable-upload", false, "disable storage uploads")
	rootCmd.MarkFlagsMutuallyExclusive("validate", "status", "process", "enable-upload", "disable-upload")
}

// runRoot maps the root flags onto the matching subcommands.
func runRoot(cmd *cobra.Command, args []string) error {
	switch {
	case flagValidate:
		return validateCmd.RunE(cmd, args)
	case flagStatus:
		return statusCmd.RunE(cmd, args)
	case flagEnableUp:
		return setUpload(true)
	case flagDisableUp:
		return setUpload(false)
	case flagProcess:
		return processCmd.RunE(cmd, args)
	default:
		return cmd.Help()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging installs the process-wide slog handler described by cfg and
// returns it. The returned func closes the log file, if any.
func setupLogging(cfg *config.Config) (*slog.Logger, func()) {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	closer := func() {}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
			closer = func() { f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
