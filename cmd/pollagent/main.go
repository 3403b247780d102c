// Package main provides the pollagent CLI: it serves built-in demo tools, invokes tools remotely and
// prints tool definitions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skosovsky/pollagent"
	"github.com/skosovsky/pollagent/internal/config"
	"github.com/skosovsky/pollagent/internal/logging"
)

// app carries state shared by subcommands once the root pre-run has loaded configuration.
type app struct {
	configPath string
	endpoint   string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "pollagent",
		Short:        "Run tools for a job coordinator",
		Version:      pollagent.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $POLLAGENT_CONFIG or ~/.pollagent/config.json)")
	root.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "coordinator endpoint (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		listenCmd(a),
		callCmd(a),
		toolsCmd(a),
		configCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Endpoint = a.endpoint
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.configPath = path
	a.cfg = cfg
	a.logger = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
	return nil
}

// client builds a pollagent.Client from the loaded configuration.
func (a *app) client(extra ...pollagent.Option) (*pollagent.Client, error) {
	if a.cfg.APISecret == "" {
		return nil, fmt.Errorf("api secret not set: use POLLAGENT_API_SECRET or %s", a.configPath)
	}
	opts := []pollagent.Option{
		pollagent.WithEndpoint(a.cfg.Endpoint),
		pollagent.WithLogger(a.logger),
		pollagent.WithRetryAfter(a.cfg.RetryAfter()),
		pollagent.WithPollLimit(a.cfg.PollLimit),
		pollagent.WithPollWaitTime(a.cfg.PollWait()),
		pollagent.WithMaxConcurrency(a.cfg.MaxConcurrency),
	}
	if a.cfg.MachineID != "" {
		opts = append(opts, pollagent.WithMachineID(a.cfg.MachineID))
	}
	if a.cfg.ClusterID != "" {
		opts = append(opts, pollagent.WithClusterID(a.cfg.ClusterID))
	}
	return pollagent.NewClient(a.cfg.APISecret, append(opts, extra...)...)
}
