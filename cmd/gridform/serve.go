package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/gridform/internal/metrics"
	"github.com/JonMunkholm/gridform/internal/web"
)

func serveCmd(schemaFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tables over HTTP",
		Long: `Start the HTTP API. Tables are loaded from the schema file and, when
DATABASE_URL is set, from PostgreSQL. SIGINT or SIGTERM shuts the
server down gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *schemaFile, nil)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
}

// serve runs the server and the metrics tracker until ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	opts := []web.Option{web.WithLogger(a.logger)}
	if a.repo != nil {
		opts = append(opts, web.WithRepository(a.repo))
	}
	var m *metrics.Metrics
	if a.cfg.Metrics.Enabled {
		m = metrics.New(nil)
		opts = append(opts, web.WithMetrics(m))
	}
	server := web.NewServer(a.cfg, a.form, a.file, opts...)

	g, gctx := errgroup.WithContext(ctx)

	if m != nil {
		g.Go(func() error {
			m.Track(gctx, a.form, a.cfg.Form.EventBuffer)
			return nil
		})
	}

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown error", "error", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("server stopped")
	return err
}
