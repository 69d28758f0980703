// Package main provides the credcheck command line tool. It verifies
// certificate credentials from the shell and serves the verification
// endpoint used by the skill publishing workflow.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ahrav/credcheck/infrastructure/metrics"
	"github.com/ahrav/credcheck/internal/application"
	"github.com/ahrav/credcheck/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "credcheck",
		Short: "Certificate credential verification",
		Long: "credcheck reads the text on an uploaded certificate image, checks that a claimed credential id " +
			"appears on it and asks a language model whether the claimed skill title matches the certificate.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file (defaults apply when empty)")

	cmd.AddCommand(newVerifyCmd(opts), newServeCmd(opts))
	return cmd
}

// environment holds what every subcommand needs.
type environment struct {
	cfg      *application.AppConfig
	logger   logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.PrometheusMetrics
}

func setup(opts *rootOptions) (*environment, error) {
	cfg, err := application.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &environment{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewPrometheusMetrics(registry),
	}, nil
}
