package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-report/internal/metrics"
	"github.com/ginjaninja78/order-report/internal/server"
	"github.com/ginjaninja78/order-report/internal/session"
	"github.com/ginjaninja78/order-report/internal/tracker"
)

// sweepInterval is how often expired upload sessions are removed.
var sweepInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server for report uploads and the task tracker.

Upload sessions are kept in the configured session store (pebble on disk by
default) until the client deletes them. With --sweep-interval set, sessions
older than session.ttl are removed periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "Interval between expired session sweeps; 0 disables expiry")
}

func runServe(ctx context.Context) error {
	cfg := app.cfg

	sessions, err := session.Open(cfg.Session.Backend, cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	store := tracker.NewStore(cfg.Tracker.File, cfg.Tracker.Owner, tracker.WithLogger(app.log))

	srv := server.New(server.Deps{
		Config:   cfg,
		Rules:    app.rules,
		Sessions: sessions,
		Tracker:  store,
		Metrics:  metrics.NewRegistry(),
		Log:      app.log,
	})
	if sweepInterval > 0 {
		srv.ExpireSessions()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, sweepInterval)
}
