package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skosovsky/pollagent"
)

func callCmd(a *app) *cobra.Command {
	var (
		clusterID string
		timeout   time.Duration
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call <tool> [json-input]",
		Short: "Create a job for a tool and wait for its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
					return fmt.Errorf("input must be a JSON object: %w", err)
				}
			}
			opts := []pollagent.Option{pollagent.WithJobPollInterval(interval)}
			if clusterID != "" {
				opts = append(opts, pollagent.WithClusterID(clusterID))
			}
			client, err := a.client(opts...)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			out, err := client.CreateAndPollJob(ctx, args[0], input)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"jobId":      out.JobID,
				"status":     out.Status,
				"resultType": out.ResultType,
				"result":     out.Result,
			})
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster", "", "cluster id (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&interval, "interval", pollagent.DefaultJobPollInterval, "status poll interval")
	return cmd
}
