package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swisscast/kaltura-migration/internal/handlers"
	"github.com/swisscast/kaltura-migration/internal/server"
	"github.com/swisscast/kaltura-migration/pkg/jobs"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the migration API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			if err := eng.connectCatalog(ctx); err != nil {
				return err
			}

			runner := jobs.NewRunner(eng.store.Settings())
			defer runner.Close()

			handler := handlers.New(eng.store, runner, eng.scanner, eng.rewriter, eng.migrator, eng.exporter)
			srv := server.NewServer(cfg, func(router *gin.RouterGroup) {
				handler.Routes(router)
			})

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				zap.S().Infow("shutting down", "signal", sig.String())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}
