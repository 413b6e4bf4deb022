// Package cmd defines the CLI commands for the ingestor executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingestor",
		Short: "Ingests vehicle disposal notices from public auction sources.",
		Long: `ingestor walks configured auctioneer and government source indices,
fetches edital documents under per-source rate policies, extracts lot
records from tables, native PDF text, and HTML listings, and normalizes
them onto the canonical auction record contract.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
