package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/homelab/jarvis/internal/observability"
)

func logOutput() *os.File { return os.Stderr }

func buildServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane: gateway, autonomous monitor, and every tool group",
		Long: `Load the configured YAML file, open and migrate the database, wire the
safety kernel, tool dispatcher, autonomous monitor, session manager, and
voice pipeline together, then serve the REST and websocket gateway until
SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, debug bool) error {
	level := "info"
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: level, Format: "json", Output: logOutput()})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer func() { _ = rt.store.Close() }()
	defer func() { _ = rt.audit.Close() }()
	defer func() { _ = rt.tracingShutdown(context.Background()) }()

	rt.monitor.Start(ctx)

	addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      rt.gw.Router(),
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gateway server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown did not complete cleanly", "error", err)
	}
	rt.monitor.Wait()

	logger.Info("control plane stopped")
	return nil
}
