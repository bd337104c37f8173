package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/google"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Google access for the oauth auth mode",
	Long: `Auth runs the installed-app OAuth flow against google.credentials_path
and stores the resulting token at google.token_path. It is only needed when
google.auth is oauth.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(cfgPath)
		if err != nil {
			return err
		}
		_, closeLog := setupLogging(cfg)
		defer closeLog()

		if cfg.Google.Auth != google.AuthOAuth {
			fmt.Fprintf(os.Stderr, "Note: google.auth is %q; the token is only used in %q mode.\n", cfg.Google.Auth, google.AuthOAuth)
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := google.Authorize(ctx, cfg.Google.CredentialsPath, cfg.Google.TokenPath, os.Stdout); err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Token saved to %s\n", cfg.Google.TokenPath)
		return nil
	},
}
