package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smart-trader",
	Short: "Trading journal backend with broker imports and AI chart audits",
	Long: `Smart Trader keeps a per-user trading journal split into demo and real accounts.

It provides:
  - An HTTP API for imports, the dashboard, strategies and chart audits
  - Database migrations for the SQLite journal
  - An offline parser for broker statements`,
	SilenceUsage: true,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}
