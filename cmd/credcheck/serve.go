package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahrav/credcheck/infrastructure/httpapi"
	"github.com/ahrav/credcheck/internal/application"
	"github.com/ahrav/credcheck/internal/logging"
)

type serveOptions struct {
	addr string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the verification HTTP server",
		Long: "Starts an HTTP server exposing POST " + httpapi.RouteVerify + " for the skill publishing workflow, " +
			"plus " + httpapi.RouteHealth + " and " + httpapi.RouteMetrics + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address, overriding server.addr")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	env, err := setup(root)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	if opts.addr != "" {
		env.cfg.Server.Addr = opts.addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator, err := application.Build(ctx, env.cfg, nil, env.logger, env.metrics)
	if err != nil {
		return fmt.Errorf("failed to build verification pipeline: %w", err)
	}

	srv := httpapi.NewServer(env.cfg.Server, coordinator, env.logger, env.metrics, env.registry)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	env.logger.Info("server stopped", logging.String("addr", env.cfg.Server.Addr))
	return nil
}
