// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/doc-improver/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(types.StoreConfig{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewRequiresAbsolutePath(t *testing.T) {
	if _, err := New(types.StoreConfig{BaseDir: "relative/dir"}); err == nil {
		t.Fatal("expected error for relative base directory")
	}
}

func TestCreateSession(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	if !sessionIDPattern.MatchString(id) {
		t.Errorf("session id %q is not a 32-char hex token", id)
	}

	dir, err := s.SessionDir(id)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(dir) != s.BaseDir() {
		t.Errorf("session dir %s is outside base %s", dir, s.BaseDir())
	}

	// Ids must be unique per upload.
	id2, err := s.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	if id == id2 {
		t.Error("two sessions received the same id")
	}
}

func TestStoreUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		maxBytes int64
		wantKind types.ErrorKind
	}{
		{
			name:     "valid docx",
			filename: "report.docx",
			data:     []byte("PK\x03\x04 fake docx"),
		},
		{
			name:     "uppercase extension accepted",
			filename: "REPORT.DOCX",
			data:     []byte("PK\x03\x04"),
		},
		{
			name:     "wrong extension",
			filename: "notes.txt",
			data:     []byte("hello"),
			wantKind: types.KindUnsupportedFormat,
		},
		{
			name:     "missing filename",
			filename: "",
			data:     []byte("hello"),
			wantKind: types.KindUnsupportedFormat,
		},
		{
			name:     "empty payload",
			filename: "empty.docx",
			data:     nil,
			wantKind: types.KindUnsupportedFormat,
		},
		{
			name:     "payload over ceiling",
			filename: "big.docx",
			data:     bytes.Repeat([]byte("x"), 64),
			maxBytes: 16,
			wantKind: types.KindPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.StoreConfig{BaseDir: t.TempDir(), MaxUploadBytes: tt.maxBytes}
			s, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			id, err := s.CreateSession()
			if err != nil {
				t.Fatal(err)
			}

			doc, err := s.StoreUpload(id, tt.data, tt.filename)
			if tt.wantKind != "" {
				if err == nil {
					t.Fatalf("expected %s error, got nil", tt.wantKind)
				}
				if got := types.KindOf(err); got != tt.wantKind {
					t.Errorf("error kind = %s, want %s", got, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			stored, err := os.ReadFile(doc.Path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(stored, tt.data) {
				t.Error("stored bytes differ from upload")
			}
			if doc.Size != int64(len(tt.data)) {
				t.Errorf("Size = %d, want %d", doc.Size, len(tt.data))
			}
		})
	}
}

func TestStoreUploadSanitizesFilename(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateSession()
	if err != nil {
		t.Fatal(err)
	}

	doc, err := s.StoreUpload(id, []byte("data"), "../../escape.docx")
	if err != nil {
		t.Fatal(err)
	}
	sessionDir, _ := s.SessionDir(id)
	if filepath.Dir(doc.Path) != sessionDir {
		t.Errorf("upload written outside session dir: %s", doc.Path)
	}
	if doc.Name != "escape.docx" {
		t.Errorf("Name = %q, want escape.docx", doc.Name)
	}
}

func TestSessionIsolation(t *testing.T) {
	s := newTestStore(t)

	// Two sessions upload files with the same name; neither observes the
	// other's bytes or media directory.
	idA, _ := s.CreateSession()
	idB, _ := s.CreateSession()

	docA, err := s.StoreUpload(idA, []byte("contents A"), "same.docx")
	if err != nil {
		t.Fatal(err)
	}
	docB, err := s.StoreUpload(idB, []byte("contents B"), "same.docx")
	if err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(docA.Path)
	b, _ := os.ReadFile(docB.Path)
	if string(a) != "contents A" || string(b) != "contents B" {
		t.Error("sessions observed each other's upload")
	}

	mediaA, err := s.MediaDir(idA)
	if err != nil {
		t.Fatal(err)
	}
	mediaB, err := s.MediaDir(idB)
	if err != nil {
		t.Fatal(err)
	}
	if mediaA == mediaB {
		t.Error("sessions share a media directory")
	}
	if s.OutputPath(idA) == s.OutputPath(idB) {
		t.Error("sessions share an output path")
	}
}

func TestPurgeIdempotent(t *testing.T) {
	s := newTestStore(t)
	id, _ := s.CreateSession()
	if _, err := s.StoreUpload(id, []byte("data"), "doc.docx"); err != nil {
		t.Fatal(err)
	}

	if err := s.Purge(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SessionDir(id); types.KindOf(err) != types.KindNotFound {
		t.Error("session dir still resolvable after purge")
	}

	// Second purge and purge of an unknown id are both no-ops.
	if err := s.Purge(id); err != nil {
		t.Errorf("second purge errored: %v", err)
	}
	if err := s.Purge(strings.Repeat("ab", 16)); err != nil {
		t.Errorf("purge of unknown session errored: %v", err)
	}
}

func TestPurgeRejectsMalformedID(t *testing.T) {
	s := newTestStore(t)

	// Plant a file outside any session to prove traversal cannot reach it.
	victim := filepath.Join(s.BaseDir(), "keep.txt")
	if err := os.WriteFile(victim, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"..", "../..", "keep.txt", "ABC", ""} {
		if err := s.Purge(id); err == nil {
			t.Errorf("Purge(%q) accepted a malformed id", id)
		}
	}
	if _, err := os.Stat(victim); err != nil {
		t.Error("file outside sessions was removed")
	}
}
