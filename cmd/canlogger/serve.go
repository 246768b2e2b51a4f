package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canlogger/canlogger/internal/app"
	"github.com/canlogger/canlogger/internal/bootstrap"
)

// shutdownGrace bounds how long Shutdown waits for the HTTP server to drain
// and open log files to close before the process exits anyway.
const shutdownGrace = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the logger: ingest, writer, network supervisor and control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			settings := bootstrap.Load(v)

			a, err := app.New(settings, logger)
			if err != nil {
				logger.Error("startup failed", "err", err)
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			a.Start(ctx)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, shutdownSignals...)
			<-quit
			logger.Info("shutdown signal received")

			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer shutdownCancel()
			return a.Shutdown(shutdownCtx)
		},
	}
}
