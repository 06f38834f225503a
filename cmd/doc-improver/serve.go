// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-improver/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document-improvement HTTP API",
	Long: `Serve exposes the pipeline over HTTP: upload a .docx to /api/documents,
poll its status, download the improved document, and preview extracted
images under /media/. A background sweeper reclaims expired sessions.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "bind address (default :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.ListenAddr = listen
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	orch, closeRegistry, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orch.RunSweeper(ctx, cfg.Store.SweepInterval, cfg.Store.SessionMaxAge)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           web.NewServer(orch, logger, cfg.Store.MaxUploadBytes).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Server.ListenAddr, "store", cfg.Store.BaseDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
