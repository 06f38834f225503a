// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store manages per-session working directories: the uploaded
// document, extracted media, and the generated output. Each session owns
// exactly one subtree under the base directory; no operation ever touches
// another session's files.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdiddy/doc-improver/pkg/types"
)

const (
	mediaSubdir  = "media"
	outputName   = "improved.docx"
	originalMD   = "original.md"
	improvedMD   = "improved.md"
	defaultLimit = 10 << 20 // 10 MiB, matching the upload ceiling of the web boundary
)

// sessionIDPattern matches well-formed session tokens. Purge and path
// lookups reject anything else, which also closes off path traversal.
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Store allocates and reclaims session working directories.
type Store struct {
	baseDir   string
	maxUpload int64
}

// New creates a Store rooted at cfg.BaseDir. The base directory must be an
// absolute path; it is created if absent.
func New(cfg types.StoreConfig) (*Store, error) {
	if !filepath.IsAbs(cfg.BaseDir) {
		return nil, fmt.Errorf("store base directory must be absolute, got %q", cfg.BaseDir)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory %s: %w", cfg.BaseDir, err)
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultLimit
	}

	return &Store{baseDir: cfg.BaseDir, maxUpload: maxUpload}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string { return s.baseDir }

// CreateSession allocates a fresh, empty working directory and returns the
// new session id.
func (s *Store) CreateSession() (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", types.E(types.KindResourceExhausted, "could not generate session id", err)
	}
	if err := os.Mkdir(filepath.Join(s.baseDir, id), 0o755); err != nil {
		return "", types.E(types.KindResourceExhausted, "could not allocate session directory", err)
	}
	return id, nil
}

// SessionDir returns the working directory for id, or an error if the id is
// malformed or the session does not exist.
func (s *Store) SessionDir(id string) (string, error) {
	if !sessionIDPattern.MatchString(id) {
		return "", types.Ef(types.KindNotFound, "malformed session id")
	}
	dir := filepath.Join(s.baseDir, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", types.Ef(types.KindNotFound, "unknown session")
	}
	return dir, nil
}

// StoreUpload validates and writes an uploaded document into the session
// directory. Only .docx uploads are accepted, and only up to the configured
// byte ceiling.
func (s *Store) StoreUpload(id string, data []byte, filename string) (*types.SourceDocument, error) {
	dir, err := s.SessionDir(id)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, types.Ef(types.KindUnsupportedFormat, "missing filename")
	}
	if !strings.EqualFold(filepath.Ext(name), ".docx") {
		return nil, types.Ef(types.KindUnsupportedFormat, "only .docx documents are supported, got %q", filepath.Ext(name))
	}
	if int64(len(data)) > s.maxUpload {
		return nil, types.Ef(types.KindPayloadTooLarge, "upload is %d bytes, limit is %d", len(data), s.maxUpload)
	}
	if len(data) == 0 {
		return nil, types.Ef(types.KindUnsupportedFormat, "upload is empty")
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, types.E(types.KindResourceExhausted, "could not store upload", err)
	}

	return &types.SourceDocument{
		SessionID: id,
		Path:      path,
		Name:      name,
		Size:      int64(len(data)),
	}, nil
}

// MediaDir returns the session's media directory, creating it if absent.
// Extracted images live here under stable filenames.
func (s *Store) MediaDir(id string) (string, error) {
	dir, err := s.SessionDir(id)
	if err != nil {
		return "", err
	}
	mediaDir := filepath.Join(dir, mediaSubdir)
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", types.E(types.KindResourceExhausted, "could not create media directory", err)
	}
	return mediaDir, nil
}

// OutputPath returns the deterministic path for the regenerated document.
func (s *Store) OutputPath(id string) string {
	return filepath.Join(s.baseDir, id, outputName)
}

// MarkdownPath returns where a Markdown rendition is kept. improved selects
// between the original extraction and the rewrite output.
func (s *Store) MarkdownPath(id string, improved bool) string {
	name := originalMD
	if improved {
		name = improvedMD
	}
	return filepath.Join(s.baseDir, id, name)
}

// Purge deletes the session's entire working directory tree. It is
// idempotent: purging twice, or purging an unknown session, is a no-op.
// Malformed ids are rejected so a crafted id can never escape the base
// directory.
func (s *Store) Purge(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("refusing to purge malformed session id %q", id)
	}
	if err := os.RemoveAll(filepath.Join(s.baseDir, id)); err != nil {
		return fmt.Errorf("purging session %s: %w", id, err)
	}
	return nil
}

// newSessionID returns 16 random bytes as 32 lowercase hex characters.
func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
