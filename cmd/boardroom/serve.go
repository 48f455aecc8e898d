package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/boardroom/internal/config"
	"github.com/MrWong99/boardroom/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(c *commandContext) *cobra.Command {
	var listenFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics, toast notifications and the transcribe-audio function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := c.ensureConfig()
			if err != nil {
				return err
			}
			addr := cfg.Server.ListenAddr
			if listenFlag != "" {
				addr = listenFlag
			}

			// The global meter provider must be in place before any metrics
			// are created.
			shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceName:    "boardroom",
				ServiceVersion: version,
			})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := shutdownOTel(sctx); err != nil {
					slog.Warn("telemetry shutdown error", "err", err)
				}
			}()

			application, err := c.newApp(ctx)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           application.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("http server listening", "addr", addr, "tls", cfg.Server.TLS != nil)
				var err error
				if tls := cfg.Server.TLS; tls != nil {
					err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
				} else {
					err = srv.ListenAndServe()
				}
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			})
			if c.configPath != "" {
				w, err := config.NewWatcher(c.configPath, application.ApplyConfig)
				if err != nil {
					return err
				}
				g.Go(func() error { return w.Run(gctx) })
			}
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})

			runErr := g.Wait()

			slog.Info("shutdown signal received, stopping")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := application.Shutdown(sctx); err != nil {
				slog.Error("shutdown error", "err", err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&listenFlag, "listen", "", "Override server.listen_addr")
	return cmd
}
