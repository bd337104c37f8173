package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the worklist and storage are reachable",
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
		fmt.Fprintln(os.Stdout, "Setup validation successful")
		return nil
	},
}
