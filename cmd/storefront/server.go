package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var autoBootstrap bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the headless shell with the status HTTP API",
	Long: `Start the storefront status server on the configured port (default :8082).

The server exposes bootstrap status, readiness and dependency health, and
by default runs the bootstrap sequence once on startup. Font files are
watched so edits are picked up on the next preload. It shuts down cleanly
on SIGTERM or SIGINT.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().BoolVar(&autoBootstrap, "bootstrap", true, "run the bootstrap sequence on startup")
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.loader.Watch(ctx, cfg.Assets.Dir); err != nil {
			slog.WarnContext(ctx, "asset watcher stopped", "error", err)
		}
	}()

	// Events relayed before mount find no listeners and are dropped.
	app.startBridge(ctx)

	if autoBootstrap {
		go func() {
			if _, err := app.orchestrator.RunBootstrap(ctx); err != nil {
				slog.WarnContext(ctx, "startup bootstrap skipped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("storefront server listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("shutdown signal received")
		}

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped cleanly")
	return nil
}
