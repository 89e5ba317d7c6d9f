package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/booking-reconciler/internal/config"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Retry deferred bookings",
		Long: `Consume DEFERRED_TOPIC as a member of DEFERRED_GROUP_ID and give each
deferred booking one more attempt.  A booking that fails again is
logged and dropped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.logger.Error().Err(err).Msg("shutdown")
				}
			}()
			if a.cfg.Queue.Driver == config.QueueMemory {
				a.logger.Warn().Msg("memory queue only sees messages published by this process")
			}
			return a.runWorker(ctx, a.bookingService())
		},
	}
}
