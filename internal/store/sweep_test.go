// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdiddy/doc-improver/pkg/types"
)

func TestSweep(t *testing.T) {
	s := newTestStore(t)

	oldID, err := s.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	freshID, err := s.CreateSession()
	if err != nil {
		t.Fatal(err)
	}

	// Age the first session past the cutoff.
	oldDir, _ := s.SessionDir(oldID)
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	// A stray non-session file in the base dir must be left alone.
	stray := filepath.Join(s.BaseDir(), "README")
	if err := os.WriteFile(stray, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(stray, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := s.SessionDir(oldID); types.KindOf(err) != types.KindNotFound {
		t.Error("expired session survived the sweep")
	}
	if _, err := s.SessionDir(freshID); err != nil {
		t.Error("fresh session was swept")
	}
	if _, err := os.Stat(stray); err != nil {
		t.Error("sweep removed a non-session file")
	}
}

func TestSweepEmptyBase(t *testing.T) {
	s := newTestStore(t)
	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
