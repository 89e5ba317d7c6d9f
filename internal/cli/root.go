// Package cli implements the booking-reconciler command line: the HTTP
// server, the deferred retry worker and the operator helpers.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string // overrides LOG_LEVEL when set
	Migrate  bool   // create missing tables before starting
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "booking-reconciler",
		Short: "Booking reconciliation and association service",
		Long: `Persists booking documents (containers, purchase orders, invoices)
idempotently, links orders to containers, and retries failed submissions
once through a message queue.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	cmd.PersistentFlags().BoolVar(&opts.Migrate, "migrate", false, "create missing tables before starting")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
