package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(cfgPath)
		if err != nil {
			return err
		}
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("logscribe setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Worklist.Backend = prompt(scanner, "Worklist backend (sheets or csv)", cfg.Worklist.Backend)
		if cfg.Worklist.Backend == "csv" {
			cfg.Worklist.Path = prompt(scanner, "Worklist CSV path", cfg.Worklist.Path)
		} else {
			cfg.Worklist.SpreadsheetURL = prompt(scanner, "Spreadsheet URL", cfg.Worklist.SpreadsheetURL)
			cfg.Worklist.Worksheet = prompt(scanner, "Worksheet name", cfg.Worklist.Worksheet)
		}
		cfg.Worklist.SourceColumn = prompt(scanner, "Source link column", cfg.Worklist.SourceColumn)
		cfg.Worklist.DestinationColumn = prompt(scanner, "Destination link column", cfg.Worklist.DestinationColumn)

		cfg.Storage.Backend = prompt(scanner, "Storage backend (drive or local)", cfg.Storage.Backend)
		if cfg.Storage.Backend == "local" {
			cfg.Storage.LocalDir = prompt(scanner, "Output directory", cfg.Storage.LocalDir)
		} else {
			cfg.Storage.FolderName = prompt(scanner, "Drive folder name", cfg.Storage.FolderName)
		}

		if cfg.Worklist.Backend == "sheets" || cfg.Storage.Backend == "drive" {
			cfg.Google.Auth = prompt(scanner, "Google auth (service_account or oauth)", cfg.Google.Auth)
			cfg.Google.CredentialsPath = prompt(scanner, "Google credentials file", cfg.Google.CredentialsPath)
		}

		cfg.Notify.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Notify.Telegram.Token)
		if cfg.Notify.Telegram.Token != "" {
			chat := prompt(scanner, "Telegram chat id", strconv.FormatInt(cfg.Notify.Telegram.ChatID, 10))
			if n, err := strconv.ParseInt(chat, 10, 64); err == nil {
				cfg.Notify.Telegram.ChatID = n
			}
		}

		if err := cfg.Validate(); err != nil {
			fmt.Println()
			fmt.Println("Warning:", err)
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		if cfg.Google.Auth == "oauth" {
			fmt.Println("Run 'logscribe auth' to authorize Google access.")
		}
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
