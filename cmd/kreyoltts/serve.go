package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/example/go-kreyol-tts/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var noBert bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the front end HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			fe, err := newFrontend(cfg)
			if err != nil {
				return err
			}
			defer fe.Close()

			// Without a model the server still answers /normalize and /g2p.
			if !noBert {
				if err := fe.LoadFeatures(cfg); err != nil {
					slog.Warn("bert features unavailable; /bert will answer 503", "error", err)
				}
			}

			srv := server.New(cfg, fe, server.WithLogger(slog.Default()))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("listening", "addr", cfg.Server.ListenAddr, "features", fe.FeaturesLoaded())
			return srv.Start(ctx)
		},
	}

	cmd.Flags().BoolVar(&noBert, "no-bert", false, "Do not load the embedding model")

	return cmd
}
