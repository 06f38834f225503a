// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the domain model and configuration shared across
// doc-improver components.
package types

import "time"

// SessionState tracks a session through the pipeline. Transitions are
// validated by the orchestrator; the two terminal states are StateReady
// and StateFailed.
type SessionState string

const (
	StateReceived     SessionState = "received"
	StateExtracting   SessionState = "extracting"
	StateRewriting    SessionState = "rewriting"
	StateReassembling SessionState = "reassembling"
	StateReady        SessionState = "ready"
	StateFailed       SessionState = "failed"
)

// Terminal reports whether the state is final.
func (s SessionState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Session is one upload-to-download cycle: an opaque id, a working
// directory owned exclusively by this session, and a lifecycle.
type Session struct {
	// ID is the opaque session token (32 lowercase hex characters).
	ID string `json:"id" yaml:"id"`

	// Dir is the absolute path of the session working directory.
	Dir string `json:"dir" yaml:"dir"`

	// State is the current pipeline state.
	State SessionState `json:"state" yaml:"state"`

	// ErrorKind and ErrorMessage are set when State is failed.
	ErrorKind    ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	// SourceName is the sanitized filename of the uploaded document.
	SourceName string `json:"source_name,omitempty" yaml:"source_name,omitempty"`

	// OutputPath is the generated document path, set once State is ready.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// SourceDocument is the uploaded binary document, owned by its session.
type SourceDocument struct {
	// SessionID identifies the owning session.
	SessionID string `json:"session_id" yaml:"session_id"`

	// Path is where the upload was written inside the session directory.
	Path string `json:"path" yaml:"path"`

	// Name is the sanitized original filename.
	Name string `json:"name" yaml:"name"`

	// Size is the upload size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// MediaAsset is an image extracted from the source document. Assets are
// identified by a filename unique within the session's media directory and
// referenced from Markdown by a path relative to the session root
// (e.g. "media/image1.png"). Bytes round-trip unchanged from extraction
// to re-injection.
type MediaAsset struct {
	// Name is the asset filename inside the media directory.
	Name string `json:"name" yaml:"name"`

	// Ref is the reference path as it appears in the Markdown.
	Ref string `json:"ref" yaml:"ref"`

	// Size is the asset size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// MarkdownDocument is an immutable Markdown rendition of the document plus
// the ordered set of media assets it references. Two exist per session:
// the original extraction and the improved rewrite.
type MarkdownDocument struct {
	// Content is the Markdown text.
	Content string `json:"content" yaml:"content"`

	// Assets lists referenced media in order of first reference.
	Assets []MediaAsset `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// Refs returns the reference paths of the document's assets, in order.
func (d *MarkdownDocument) Refs() []string {
	refs := make([]string, len(d.Assets))
	for i, a := range d.Assets {
		refs[i] = a.Ref
	}
	return refs
}

// ImprovedDocument is the reassembled output document. It exists only
// after the full pipeline has completed.
type ImprovedDocument struct {
	// SessionID identifies the owning session.
	SessionID string `json:"session_id" yaml:"session_id"`

	// Path is the generated .docx location.
	Path string `json:"path" yaml:"path"`

	// Size is the output size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// Result is what the upload boundary returns on success.
type Result struct {
	// SessionID doubles as the download reference.
	SessionID string `json:"session_id" yaml:"session_id"`

	// SourceName is the sanitized uploaded filename.
	SourceName string `json:"source_name" yaml:"source_name"`

	// OriginalMarkdown is the extraction output.
	OriginalMarkdown string `json:"original_markdown" yaml:"original_markdown"`

	// ImprovedMarkdown is the rewrite output.
	ImprovedMarkdown string `json:"improved_markdown" yaml:"improved_markdown"`

	// OutputPath is the generated document path.
	OutputPath string `json:"output_path" yaml:"output_path"`
}
