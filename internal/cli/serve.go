package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/iliyamo/booking-reconciler/internal/handler"
	"github.com/iliyamo/booking-reconciler/internal/middleware"
	"github.com/iliyamo/booking-reconciler/internal/router"
	"github.com/iliyamo/booking-reconciler/internal/service"
)

const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	WithWorker bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking HTTP API",
		Long: `Start the HTTP API on APP_PORT.

POST /v1/bookings accepts a booking document for the user named by the
bearer token.  Submissions that cannot be stored are published to
DEFERRED_TOPIC; run "worker" (or pass --with-worker) to retry them.

Example:
  booking-reconciler serve --migrate --with-worker`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.WithWorker, "with-worker", false, "also consume deferred bookings in this process")

	return cmd
}

func newEcho(a *app, svc handler.BookingSaver) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(a.logger.With().Str("component", "http").Logger()))

	router.RegisterRoutes(e, a.db)
	limiter := middleware.NewRateLimiter(a.cfg.RateLimit, a.redis, a.logger)
	router.RegisterBookings(e, handler.NewBookingHandler(svc, a.logger.With().Str("component", "bookings-http").Logger()), a.cfg.JWTSecret, limiter)
	return e
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("shutdown")
		}
	}()
	if err := a.cfg.RequireJWTSecret(); err != nil {
		return err
	}

	svc := a.bookingService()
	e := newEcho(a, svc)

	errCh := make(chan error, 2)
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	var workerDone <-chan struct{}
	if opts.WithWorker {
		workerDone = a.startWorker(ctx, svc, errCh)
	} else {
		idle := make(chan struct{})
		close(idle)
		workerDone = idle
	}

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("received signal, shutting down")
	case err = <-errCh:
		a.logger.Error().Err(err).Msg("server stopped")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	if !awaitWorker(shutdownCtx, workerDone) {
		a.logger.Warn().Msg("retry worker still running at shutdown deadline")
	}
	return err
}

// startWorker runs the retry consumer in the background.  The returned
// channel is closed once the consumer has returned.
func (a *app) startWorker(ctx context.Context, svc *service.BookingService, errCh chan<- error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.runWorker(ctx, svc); err != nil {
			errCh <- err
		}
	}()
	return done
}

// awaitWorker waits for done and reports false if ctx ends first.
func awaitWorker(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
