package main

import (
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacksonlee411/tableform/internal/config"
	"github.com/jacksonlee411/tableform/internal/logging"
	"github.com/jacksonlee411/tableform/internal/server"
	"github.com/jacksonlee411/tableform/pkg/docstore"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Root())
			if err != nil {
				return err
			}
			ctx, err := logging.Init(cmd.Context(),
				logging.WithLogLevel(cfg.LogLevel),
				logging.WithLogFormat(cfg.LogFormat),
			)
			if err != nil {
				return err
			}
			l := ctxzap.Extract(ctx)
			defer func() { _ = l.Sync() }()

			store, closeStore, err := docstore.Open(ctx, docstore.Options{
				Driver:      cfg.StoreDriver,
				DatabaseURL: cfg.DatabaseURL,
				SQLitePath:  cfg.SQLitePath,
			})
			if err != nil {
				return err
			}
			defer closeStore()

			h, cleanup, err := server.NewHandler(server.Options{Config: cfg, Store: store, Logger: l})
			if err != nil {
				return err
			}
			defer cleanup()

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           h,
				ReadHeaderTimeout: 10 * time.Second,
			}
			l.Info("listening",
				zap.String("addr", cfg.HTTPAddr),
				zap.String("store_driver", cfg.StoreDriver),
				zap.String("authz_mode", cfg.AuthzMode),
			)
			return server.Serve(ctx, srv, shutdownGrace)
		},
	}
}
