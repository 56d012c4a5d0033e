package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoiceflow/internal/server"
)

// invoiceflow migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the catalog schema to the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		fmt.Println("Running migrations…")
		return server.MigrateStore(cmd.Context(), cfg, logger)
	},
}

// invoiceflow seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter products, skipping names already in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		result, err := server.SeedDefaults(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d products, skipped %d existing\n", result.Added, result.Skipped)
		return nil
	},
}
