package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoiceflow/internal/server"
)

var exportRole string

// invoiceflow export
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog spreadsheet to the configured export sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		location, err := server.ExportOnce(cmd.Context(), cfg, exportRole, logger)
		if err != nil {
			return err
		}
		fmt.Println("Exported to", location)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRole, "role", "admin", "role whose columns are exported (admin or staff)")
}
