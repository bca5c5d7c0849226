// Package main provides slatectl, the operator tool for index repair.
//
// Usage:
//
//	slatectl reconcile <owner-id>
//	slatectl reindex
//	slatectl journal list
//	slatectl journal replay
//	slatectl seed --owner user-demo
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	dataPath string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "slatectl",
	Short:         "Inspect and repair the Slate search index",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Directory for store, index and journal (default: $DATA_PATH)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalReplayCmd)

	journalListCmd.Flags().Int("limit", 100, "Maximum entries to print")
	seedCmd.Flags().String("owner", "user-demo", "Owner to create the demo library for")
	seedCmd.Flags().Int("files", 6, "Number of files to create")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(seedCmd)
}
