// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences the document-improvement stages: store the
// upload, extract Markdown and media, rewrite the text, and reassemble the
// output document. It owns the session state machine and the SQLite
// session registry behind the status and download operations.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-improver/internal/store"
	"github.com/pdiddy/doc-improver/pkg/types"
)

const manifestName = "manifest.yaml"

// DocumentConverter is the two-way docx <-> Markdown conversion seam.
type DocumentConverter interface {
	ToMarkdown(ctx context.Context, src *types.SourceDocument, mediaDir string) (*types.MarkdownDocument, error)
	ToDocument(ctx context.Context, md *types.MarkdownDocument, mediaDir, outputPath string) (*types.ImprovedDocument, error)
}

// Rewriter is the text-improvement seam.
type Rewriter interface {
	Rewrite(ctx context.Context, markdown string) (string, error)
}

// Orchestrator runs the pipeline for one session at a time per session id.
// Sessions are independent; a single Orchestrator serves them concurrently.
type Orchestrator struct {
	store     *store.Store
	converter DocumentConverter
	rewriter  Rewriter
	registry  *Registry
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New assembles an Orchestrator from its stages.
func New(st *store.Store, conv DocumentConverter, rw Rewriter, reg *Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     st,
		converter: conv,
		rewriter:  rw,
		registry:  reg,
		logger:    logger,
		inflight:  make(map[string]struct{}),
	}
}

// Process runs the full pipeline for one uploaded document and returns the
// session result. The session survives in the store and registry until it
// is purged or expires, so the caller can re-download the output later.
func (o *Orchestrator) Process(ctx context.Context, data []byte, filename string) (*types.Result, error) {
	id, err := o.store.CreateSession()
	if err != nil {
		return nil, err
	}

	src, err := o.store.StoreUpload(id, data, filename)
	if err != nil {
		// Nothing worth keeping: the upload never validated.
		if perr := o.store.Purge(id); perr != nil {
			o.logger.Warn("could not reclaim rejected session", "session", id, "error", perr)
		}
		return nil, err
	}

	if err := o.registry.Create(ctx, id, src.Name); err != nil {
		if perr := o.store.Purge(id); perr != nil {
			o.logger.Warn("could not reclaim unregistered session", "session", id, "error", perr)
		}
		return nil, err
	}

	return o.run(ctx, id, src)
}

// run executes the stages for an already-registered session. At most one
// run may be active per session id.
func (o *Orchestrator) run(ctx context.Context, id string, src *types.SourceDocument) (*types.Result, error) {
	if !o.begin(id) {
		return nil, fmt.Errorf("session %s is already being processed", id)
	}
	defer o.end(id)

	mediaDir, err := o.store.MediaDir(id)
	if err != nil {
		return nil, o.fail(ctx, id, nil, err)
	}

	if err := o.registry.Transition(ctx, id, types.StateReceived, types.StateExtracting); err != nil {
		return nil, err
	}
	original, err := o.converter.ToMarkdown(ctx, src, mediaDir)
	if err != nil {
		return nil, o.fail(ctx, id, nil, err)
	}
	if err := os.WriteFile(o.store.MarkdownPath(id, false), []byte(original.Content), 0o644); err != nil {
		return nil, o.fail(ctx, id, original.Assets, types.E(types.KindResourceExhausted, "could not persist extracted markdown", err))
	}

	if err := o.registry.Transition(ctx, id, types.StateExtracting, types.StateRewriting); err != nil {
		return nil, err
	}
	improvedText, err := o.rewriter.Rewrite(ctx, original.Content)
	if err != nil {
		return nil, o.fail(ctx, id, original.Assets, err)
	}
	if err := os.WriteFile(o.store.MarkdownPath(id, true), []byte(improvedText), 0o644); err != nil {
		return nil, o.fail(ctx, id, original.Assets, types.E(types.KindResourceExhausted, "could not persist improved markdown", err))
	}

	if err := o.registry.Transition(ctx, id, types.StateRewriting, types.StateReassembling); err != nil {
		return nil, err
	}
	improved := &types.MarkdownDocument{Content: improvedText, Assets: original.Assets}
	output, err := o.converter.ToDocument(ctx, improved, mediaDir, o.store.OutputPath(id))
	if err != nil {
		return nil, o.fail(ctx, id, original.Assets, err)
	}
	output.SessionID = id

	if err := o.registry.Ready(ctx, id, output.Path); err != nil {
		return nil, err
	}
	o.writeManifest(ctx, id, original.Assets)

	o.logger.Info("session complete", "session", id, "source", src.Name,
		"assets", len(original.Assets), "output_bytes", output.Size)

	return &types.Result{
		SessionID:        id,
		SourceName:       src.Name,
		OriginalMarkdown: original.Content,
		ImprovedMarkdown: improvedText,
		OutputPath:       output.Path,
	}, nil
}

// fail records a terminal failure and returns the original error. A
// cancelled run is recorded as such and its files reclaimed immediately;
// the registry row stays so a status probe can still see what happened.
func (o *Orchestrator) fail(ctx context.Context, id string, assets []types.MediaAsset, cause error) error {
	kind := types.KindOf(cause)
	if ctx.Err() != nil || kind == types.KindCancelled {
		kind = types.KindCancelled
		cause = types.E(types.KindCancelled, "session abandoned by the caller", cause)
	}

	// Bookkeeping must outlive the caller's context.
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.registry.Fail(bg, id, kind, types.MessageOf(cause)); err != nil {
		o.logger.Error("could not record session failure", "session", id, "error", err)
	}

	if kind == types.KindCancelled {
		if err := o.store.Purge(id); err != nil {
			o.logger.Warn("could not reclaim cancelled session", "session", id, "error", err)
		}
	} else {
		o.writeManifest(bg, id, assets)
	}

	o.logger.Warn("session failed", "session", id, "kind", string(kind), "error", cause)
	return cause
}

// writeManifest drops a manifest.yaml diagnostic into the session directory
// on terminal states. Best effort.
func (o *Orchestrator) writeManifest(ctx context.Context, id string, assets []types.MediaAsset) {
	session, err := o.registry.Get(ctx, id)
	if err != nil {
		o.logger.Warn("could not load session for manifest", "session", id, "error", err)
		return
	}
	dir, err := o.store.SessionDir(id)
	if err != nil {
		return
	}
	session.Dir = dir

	doc := struct {
		Session *types.Session     `yaml:"session"`
		Assets  []types.MediaAsset `yaml:"assets,omitempty"`
	}{Session: session, Assets: assets}

	data, err := yaml.Marshal(doc)
	if err != nil {
		o.logger.Warn("could not encode manifest", "session", id, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		o.logger.Warn("could not write manifest", "session", id, "error", err)
	}
}

// Status returns the registry row for a session.
func (o *Orchestrator) Status(ctx context.Context, id string) (*types.Session, error) {
	return o.registry.Get(ctx, id)
}

// Download resolves the generated document for a ready session. The
// returned name is the client-facing filename derived from the upload.
func (o *Orchestrator) Download(ctx context.Context, id string) (path, name string, err error) {
	session, err := o.registry.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if session.State != types.StateReady {
		return "", "", types.Ef(types.KindNotFound, "session output is not available in state %s", session.State)
	}
	if _, err := os.Stat(session.OutputPath); err != nil {
		return "", "", types.Ef(types.KindNotFound, "session output has been reclaimed")
	}

	base := strings.TrimSuffix(session.SourceName, filepath.Ext(session.SourceName))
	if base == "" {
		base = "document"
	}
	return session.OutputPath, base + "-improved.docx", nil
}

// Media resolves an extracted asset by filename for preview rendering.
// Only bare filenames are accepted, which closes off path traversal.
func (o *Orchestrator) Media(ctx context.Context, id, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", types.Ef(types.KindNotFound, "unknown media asset")
	}
	if _, err := o.registry.Get(ctx, id); err != nil {
		return "", err
	}
	dir, err := o.store.SessionDir(id)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "media", name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", types.Ef(types.KindNotFound, "unknown media asset")
	}
	return path, nil
}

// Purge removes a session's files and registry row. Idempotent.
func (o *Orchestrator) Purge(ctx context.Context, id string) error {
	if err := o.store.Purge(id); err != nil {
		return types.E(types.KindNotFound, "unknown session", err)
	}
	return o.registry.Delete(ctx, id)
}

// Sweep reclaims sessions last touched before maxAge ago: registry rows
// and their working directories together, then any orphaned directories
// the store still holds. Returns how many sessions were reclaimed.
func (o *Orchestrator) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := o.registry.ExpiredBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := o.store.Purge(id); err != nil {
			o.logger.Warn("sweep could not reclaim session files", "session", id, "error", err)
			continue
		}
		if err := o.registry.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}

	orphans, err := o.store.Sweep(maxAge)
	if err != nil {
		return removed, err
	}
	return removed + orphans, nil
}

// RunSweeper sweeps expired sessions every interval until ctx is cancelled.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := o.Sweep(ctx, maxAge)
			if err != nil {
				o.logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				o.logger.Info("reclaimed expired sessions", "count", n, "max_age", maxAge)
			}
		}
	}
}

func (o *Orchestrator) begin(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) end(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}
