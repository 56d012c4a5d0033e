package main

import (
	"fmt"
	"os"

	"invoiceflow/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "invoiceflow",
	Short:        "InvoiceFlow catalog service",
	Long:         "Serves the shared product catalog and manages its store and spreadsheet exports.",
	SilenceUsage: true,
}

func init() {
	// Server
	rootCmd.AddCommand(serveCmd)

	// Store
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)

	// Exports
	rootCmd.AddCommand(exportCmd)
}

// boot loads configuration and builds the logger every command uses.
func boot() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, config.NewLogger(cfg.Logger), nil
}
