package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/bakehouse/internal/api"
	"github.com/roach88/bakehouse/internal/metrics"
	"github.com/roach88/bakehouse/internal/schedule"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the count scheduler",
		Long: `Serve the JSON API under /v1, Prometheus metrics on /metrics and a
health check on /healthz. Configured count schedules run in the same process.

Requests identify themselves with the X-Tenant-ID and X-User-ID headers.

Examples:
  bakehouse serve --config ./bakehouse.yaml
  bakehouse serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			a, err := openApp(rootOpts, m.Hooks())
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.HTTP
			if opts.Addr != "" {
				cfg.Addr = opts.Addr
			}

			sched := schedule.New(a.counts, a.inv, a.log, schedule.WithRecorder(m.Scheduled))
			if err := sched.Add(a.cfg.Schedules...); err != nil {
				return WrapExitError(ExitCommandError, "invalid schedule", err)
			}
			a.log.Info("starting", zap.String("db", a.cfg.DBPath), zap.Int("schedules", sched.Len()))

			srv := api.New(cfg, api.Deps{
				Services: api.Services{
					Inventory:  a.inv,
					Counts:     a.counts,
					Sales:      a.sales,
					Production: a.prod,
				},
				Resolver:  a.tenancy,
				Health:    a.st,
				Metrics:   m,
				Scheduler: sched,
				Log:       a.log,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
