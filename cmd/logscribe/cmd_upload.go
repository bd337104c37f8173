package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/config"
)

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadEnableCmd, uploadDisableCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Turn storage uploads on or off",
}

var uploadEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable storage uploads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUpload(true)
	},
}

var uploadDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable storage uploads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUpload(false)
	},
}

// setUpload persists storage.enable_upload in the config file.
func setUpload(enabled bool) error {
	if err := config.SetValue(cfgPath, "storage.enable_upload", strconv.FormatBool(enabled)); err != nil {
		return err
	}
	if enabled {
		fmt.Fprintln(os.Stdout, "Storage upload enabled")
	} else {
		fmt.Fprintln(os.Stdout, "Storage upload disabled")
	}
	return nil
}
