// Package serve runs payq as a long-lived service: the HTTP API for the
// order platform plus the periodic sweep.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nathanbeddoewebdev/payq/internal/app"
	"nathanbeddoewebdev/payq/internal/httpapi"
	"nathanbeddoewebdev/payq/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic sweep",
		Long: `Run payq as a service. The order platform posts status changes to
POST /v1/orders/{ref}/events; each event queues the matching provider
action and processes the order right away. Every sweep interval all orders
with pending actions are processed again, which is what retries failed
actions.

Endpoints:
  POST /v1/orders/{ref}/events   queue a transition and process the order
  GET  /v1/orders/{ref}          show the order's queue
  POST /v1/sweep                 request an immediate sweep
  GET  /healthz                  scheduler status

Alerts for broken actions are written to stderr and, when notify-to and
smtp-addr are configured, sent by email.

Examples:
  payq serve
  payq serve --listen 127.0.0.1:9090`,
		Args:         cobra.NoArgs,
		RunE:         runServe,
		SilenceUsage: true,
	}

	cmd.Flags().String("listen", "", "Address to listen on (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

	a, err := app.OpenDefault(app.Options{Logger: logger, AlertOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr = a.Settings.ListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	return Serve(ctx, a, ln, logger)
}

// Serve runs the API on ln and the scheduler until ctx is cancelled, then
// shuts both down. It closes ln.
func Serve(ctx context.Context, a *app.App, ln net.Listener, logger *log.Logger) error {
	sched := scheduler.New(a.Queue, scheduler.Config{
		Interval:  a.Settings.SweepInterval,
		BatchSize: a.Settings.BatchSize,
	}, logger)
	api := httpapi.NewServer(a.Queue, a.Store, sched, logger)

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		logger.Printf("listening on %s (payment method %s)", ln.Addr(), a.Settings.PaymentMethod)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
