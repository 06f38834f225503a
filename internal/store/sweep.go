// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweep removes session directories whose modification time is older than
// maxAge and returns how many were reclaimed. Sessions that are purged
// concurrently are skipped without error.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("reading base directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		if !entry.IsDir() || !sessionIDPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // already gone
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("sweeping session %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// RunSweeper sweeps expired sessions every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, logger *slog.Logger, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(maxAge)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("reclaimed expired sessions", "count", n, "max_age", maxAge)
			}
		}
	}
}
