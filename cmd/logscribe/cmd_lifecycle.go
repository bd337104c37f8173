package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd, triggerCmd)
}

// readPID reads the PID of the watching process and checks that the
// process exists by sending signal 0.
func readPID() (int, error) {
	cfg := loadConfig()
	if cfg.Processing.PIDFile == "" {
		return 0, fmt.Errorf("processing.pid_file is not set")
	}

	data, err := os.ReadFile(cfg.Processing.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no watcher running (PID file not found)")
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, fmt.Errorf("no watcher running (process %d not found)", pid)
	}
	return pid, nil
}

func signalWatcher(sig syscall.Signal, done string) error {
	pid, err := readPID()
	if err != nil {
		return err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("send %s: %w", sig, err)
	}
	fmt.Fprintf(os.Stdout, "%s (PID %d).\n", done, pid)
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running watcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalWatcher(syscall.SIGTERM, "Sent SIGTERM to watcher")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running watcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalWatcher(syscall.SIGHUP, "Sent SIGHUP to watcher for restart")
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask the running watcher to start a batch now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalWatcher(syscall.SIGUSR1, "Sent SIGUSR1 to watcher")
	},
}
