package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drblury/alertflow/internal/runtime/server"
)

func newServeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the invoke endpoint and alert queries over HTTP",
		Long: `Start an HTTP server exposing:

  POST /invoke        process an SQS-style event
  GET  /alerts        list stored alerts (?limit=N)
  GET  /alerts/{id}   fetch one alert
  GET  /api/stats     pipeline statistics
  GET  /metrics       Prometheus metrics (with --metrics)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			opts := server.Options{
				Invoker:            app.Processor,
				Reader:             app.Store,
				Stats:              app.Stats,
				Logger:             app.Logger,
				CORSAllowedOrigins: app.Config.CORSAllowedOrigins,
			}
			if app.Registry != nil {
				opts.Gatherer = app.Registry
			}
			srv, err := server.New(opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx, app.Config.HTTPAddress)
		},
	}
	cmd.Flags().String("address", "", "listen address (default :8080)")
	cmd.Flags().Bool("metrics", false, "expose Prometheus metrics on /metrics")
	e.bind(cmd.Flags(), map[string]string{
		"address": "http_address",
		"metrics": "metrics_enabled",
	})
	return cmd
}
