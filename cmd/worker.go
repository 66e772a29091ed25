package cmd

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/metrics"
	"github.com/harvester-hq/harvester/internal/worker"
)

// newWorkerCmd creates the 'worker' subcommand: the long-running
// consumer that drains the ingest queue into the pipeline.
func newWorkerCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the ingest queue consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub, err := a.NewSubscriber(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := sub.Close(); err != nil {
					a.Logger().Warn("close subscriber", zap.Error(err))
				}
			}()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           metrics.Handler(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.Logger().Info("metrics listening", zap.String("addr", metricsAddr))
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						a.Logger().Error("metrics server", zap.Error(err))
					}
				}()
				defer srv.Close() //nolint:errcheck
			}

			return worker.New(sub, a.Pipeline(), a.Logger()).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	return cmd
}
