package main

import (
	"github.com/spf13/cobra"

	"invoiceflow/internal/server"
)

var serveMigrate bool

// invoiceflow serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := boot()
		if err != nil {
			return err
		}
		return server.Run(cmd.Context(), cfg, server.Options{Migrate: serveMigrate}, logger)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply the store schema before serving")
}
