// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-improver/internal/pipeline"
	"github.com/pdiddy/doc-improver/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reclaim expired sessions once",
	Long: `Sweep removes session working directories and registry rows older than
the configured maximum age. The serve command runs the same sweep in the
background; this subcommand is for cron-style operation.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Duration("max-age", 0, "session age threshold (default: store.session_max_age)")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	maxAge, _ := cmd.Flags().GetDuration("max-age")
	if maxAge <= 0 {
		maxAge = cfg.Store.SessionMaxAge
	}

	// Sweeping needs neither the conversion tool nor a rewrite credential,
	// only the store and the session registry.
	st, err := store.New(cfg.Store)
	if err != nil {
		return err
	}
	reg, err := pipeline.OpenRegistry(filepath.Join(cfg.Store.BaseDir, registryFile))
	if err != nil {
		return err
	}
	defer reg.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.New(st, nil, nil, reg, logger)

	n, err := orch.Sweep(context.Background(), maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Reclaimed %d session(s) older than %s\n", n, maxAge.Round(time.Second))
	return nil
}
