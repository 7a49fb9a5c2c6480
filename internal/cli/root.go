// Package cli implements the finsync command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsync-io/finsync/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "finsync",
	Short: "Account reconciliation and balance synchronization",
	Long: `finsync keeps recorded account balances honest. It compares each
account's stored balance against the balance implied by its transaction
history, reports discrepancies with suggested fixes, records correcting
entries, and keeps externally connected accounts synced on a schedule.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.finsync/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configured (or default) config file.
func loadConfig() (daemon.Config, error) {
	return daemon.Load(configPath)
}
