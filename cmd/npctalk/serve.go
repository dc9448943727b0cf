package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/npctalk/internal/app"
)

func newServeCommand() *cobra.Command {
	var janitorInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return pkgerrors.Wrap(err, "config")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			built, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := built.Cleanup(); err != nil {
					log.Warn().Err(err).Msg("cleanup failed")
				}
			}()

			httpServer := &http.Server{
				Addr:              cfg.BindAddr,
				Handler:           built.API.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return pkgerrors.Wrap(err, "listen")
				}
				return nil
			})
			g.Go(func() error {
				return built.Sessions.RunJanitor(gctx, janitorInterval)
			})
			if built.Listener != nil {
				g.Go(func() error {
					return built.Listener.Run(gctx)
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("graceful shutdown failed")
					_ = httpServer.Close()
				}
				return nil
			})

			err = g.Wait()
			log.Info().Msg("shutdown complete")
			return err
		},
	}
	cmd.Flags().DurationVar(&janitorInterval, "janitor-interval", 5*time.Second, "how often idle player sessions are expired")
	return cmd
}
