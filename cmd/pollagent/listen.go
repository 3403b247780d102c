package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skosovsky/pollagent"
)

func listenCmd(a *app) *cobra.Command {
	var (
		only            []string
		shutdownTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Register the demo tools and serve jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := selectTools(only)
			if err != nil {
				return err
			}
			client, err := a.client(pollagent.WithMiddleware(pollagent.LoggingMiddleware(a.logger)))
			if err != nil {
				return err
			}
			if err := client.Register(tools...); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := client.Listen(ctx); err != nil {
				return err
			}
			a.logger.Info("listening", "cluster_id", client.ClusterID(), "machine_id", client.MachineID())
			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return client.Unlisten(shutdown)
		},
	}
	cmd.Flags().StringSliceVar(&only, "tools", nil, "serve only these demo tools (default all)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for in-flight jobs")
	return cmd
}
