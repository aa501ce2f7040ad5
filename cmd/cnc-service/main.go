package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cnc-service",
		Short:         "CNC machine service operations backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate()
			},
		},
		&cobra.Command{
			Use:   "sync-accounting",
			Short: "Push customers and invoices to the accounting system",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSyncAccounting(cmd.Context())
			},
		},
	)
	return root
}
