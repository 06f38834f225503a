// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert performs the two-way docx ↔ Markdown conversion by
// invoking the external conversion tool (pandoc) as a subprocess. The
// wrapper owns argument construction, working-directory isolation,
// exit-status checking, and the mapping of tool failures onto the error
// taxonomy; it deliberately does not parse the document format itself.
package convert

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/doc-improver/pkg/types"
)

// Converter wraps the conversion tool for a fixed configuration. A single
// Converter is safe for concurrent use across sessions because every
// invocation works only inside the session directory it is given.
type Converter struct {
	tool *pandoc
}

// New builds a Converter, verifying the conversion tool is present.
func New(cfg types.ConversionConfig) (*Converter, error) {
	return newConverter(cfg, defaultExec)
}

func newConverter(cfg types.ConversionConfig, exec executor) (*Converter, error) {
	tool, err := newPandoc(cfg, exec)
	if err != nil {
		return nil, err
	}
	return &Converter{tool: tool}, nil
}

// ToMarkdown converts the uploaded document to Markdown, extracting every
// embedded image into mediaDir under stable filenames and rewriting in-text
// references to paths relative to the session directory ("media/<name>").
func (c *Converter) ToMarkdown(ctx context.Context, src *types.SourceDocument, mediaDir string) (*types.MarkdownDocument, error) {
	workDir := filepath.Dir(src.Path)

	extractArg, err := filepath.Rel(workDir, mediaDir)
	if err != nil {
		return nil, types.E(types.KindConversionError, "media directory is not under the session directory", err)
	}

	out, err := c.tool.run(ctx, workDir,
		src.Name,
		"--from=docx",
		"--to=gfm",
		"--wrap=none",
		"--extract-media="+extractArg,
	)
	if err != nil {
		return nil, err
	}

	markdown := string(out)
	if strings.TrimSpace(markdown) == "" {
		return nil, types.Ef(types.KindConversionError, "conversion tool produced empty output for %s", src.Name)
	}

	markdown, err = flattenMedia(markdown, workDir, mediaDir)
	if err != nil {
		return nil, err
	}

	assets, err := collectAssets(markdown, workDir)
	if err != nil {
		return nil, err
	}

	return &types.MarkdownDocument{Content: markdown, Assets: assets}, nil
}

// ToDocument renders Markdown back into a .docx at outputPath, resolving
// relative image references against the session directory that contains
// mediaDir. Every referenced asset must exist before the tool runs.
func (c *Converter) ToDocument(ctx context.Context, md *types.MarkdownDocument, mediaDir, outputPath string) (*types.ImprovedDocument, error) {
	workDir := filepath.Dir(mediaDir)

	for _, ref := range LocalRefs(ImageRefs(md.Content)) {
		if _, err := os.Stat(filepath.Join(workDir, filepath.FromSlash(ref))); err != nil {
			return nil, types.Ef(types.KindMissingAsset, "referenced image %q is missing from the session media", ref)
		}
	}

	input := filepath.Join(workDir, "render-input.md")
	if err := os.WriteFile(input, []byte(md.Content), 0o644); err != nil {
		return nil, types.E(types.KindResourceExhausted, "could not stage markdown for rendering", err)
	}
	defer os.Remove(input)

	if _, err := c.tool.run(ctx, workDir,
		filepath.Base(input),
		"--from=gfm",
		"--to=docx",
		"--resource-path=.",
		"--output="+outputPath,
	); err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, types.E(types.KindConversionError, "conversion tool reported success but wrote no output", err)
	}

	return &types.ImprovedDocument{Path: outputPath, Size: info.Size()}, nil
}

// flattenMedia lifts files the tool nested below mediaDir (docx extraction
// lands in <mediaDir>/media/...) up to mediaDir itself and rewrites the
// Markdown references accordingly. Basename collisions abort the
// conversion rather than silently overwriting an asset.
func flattenMedia(markdown, workDir, mediaDir string) (string, error) {
	prefix, err := filepath.Rel(workDir, mediaDir)
	if err != nil {
		return "", types.E(types.KindConversionError, "media directory is not under the session directory", err)
	}
	prefix = filepath.ToSlash(prefix)

	var moves [][2]string // old ref, new ref
	err = filepath.WalkDir(mediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(mediaDir, path)
		if err != nil {
			return err
		}
		if !strings.Contains(rel, string(filepath.Separator)) {
			return nil // already at the top level
		}

		dest := filepath.Join(mediaDir, d.Name())
		if _, err := os.Stat(dest); err == nil {
			return types.Ef(types.KindConversionError, "extracted media filename collision on %q", d.Name())
		}
		if err := os.Rename(path, dest); err != nil {
			return fmt.Errorf("flattening media %s: %w", rel, err)
		}

		oldRef := prefix + "/" + filepath.ToSlash(rel)
		newRef := prefix + "/" + d.Name()
		moves = append(moves, [2]string{oldRef, newRef})
		return nil
	})
	if err != nil {
		if kerr, ok := err.(*types.Error); ok {
			return "", kerr
		}
		return "", types.E(types.KindConversionError, "reorganizing extracted media failed", err)
	}

	for _, m := range moves {
		markdown = strings.ReplaceAll(markdown, m[0], m[1])
	}

	// Drop now-empty nesting directories; best effort.
	removeEmptyDirs(mediaDir)

	return markdown, nil
}

func removeEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			sub := filepath.Join(root, e.Name())
			removeEmptyDirs(sub)
			os.Remove(sub) // fails (and is ignored) unless empty
		}
	}
}

// collectAssets builds the ordered asset list from the Markdown's local
// image references, deduplicated by first appearance.
func collectAssets(markdown, workDir string) ([]types.MediaAsset, error) {
	seen := make(map[string]bool)
	var assets []types.MediaAsset

	for _, ref := range LocalRefs(ImageRefs(markdown)) {
		if seen[ref] {
			continue
		}
		seen[ref] = true

		path := filepath.Join(workDir, filepath.FromSlash(ref))
		info, err := os.Stat(path)
		if err != nil {
			return nil, types.Ef(types.KindConversionError, "extraction referenced %q but produced no such file", ref)
		}
		assets = append(assets, types.MediaAsset{
			Name: filepath.Base(path),
			Ref:  ref,
			Size: info.Size(),
		})
	}

	return assets, nil
}
