package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ztruyen/ztc-auth/pkg/config"
	"github.com/ztruyen/ztc-auth/pkg/httpserver"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/requestid"
)

const closeTimeout = 10 * time.Second

func serveCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(config.WithDotenv(*envFiles...))
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			slog.SetDefault(log)

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				log.Error("failed to start", logger.Error(err))
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				defer cancel()
				if err := a.close(closeCtx); err != nil {
					log.Error("failed to release resources", logger.Error(err))
				}
			}()

			log.Info("starting ztc-auth",
				slog.String("version", version),
				slog.String("storage", cfg.StorageDriver),
				slog.String("state_store", cfg.StateStore),
			)
			srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
			return srv.Run(ctx, a.handler)
		},
	}
}

func newLogger(cfg App) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
		logger.WithAttr(slog.String("version", version)),
	}
	var level slog.Level
	if cfg.LogLevel != "" && level.UnmarshalText([]byte(cfg.LogLevel)) == nil {
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...)
}
