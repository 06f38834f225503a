// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreConfig holds settings for the session asset store.
type StoreConfig struct {
	// BaseDir is the absolute directory under which session working
	// directories are created (one subtree per session).
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// MaxUploadBytes is the upload size ceiling (default 10 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// SessionMaxAge is how long an unpurged session survives before the
	// expiry sweep reclaims it (default 1h).
	SessionMaxAge time.Duration `json:"session_max_age" yaml:"session_max_age"`

	// SweepInterval is how often the background sweep runs (default 1h).
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

// ConversionConfig holds settings for the external conversion tool.
type ConversionConfig struct {
	// PandocPath is the conversion tool binary (default "pandoc", resolved
	// on PATH).
	PandocPath string `json:"pandoc_path" yaml:"pandoc_path"`

	// Timeout bounds a single tool invocation (default 2m). A timeout is
	// reported as a conversion error.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RewriteConfig holds settings for the rewrite service.
type RewriteConfig struct {
	// Provider selects the backend: "openai" or "http".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the model identifier for the openai provider
	// (default "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the provider. Usually loaded from
	// .secrets/ rather than config.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Endpoint is the URL for the http provider.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// MaxRetries is the attempt ceiling for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// CallTimeout bounds a single provider call (default 2m). A timeout is
	// treated as service_unavailable for retry purposes.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// MaxChunkBytes is the request ceiling above which the Markdown body is
	// split at block boundaries (default 24 KiB).
	MaxChunkBytes int `json:"max_chunk_bytes" yaml:"max_chunk_bytes"`

	// ChunkParallelism bounds concurrent chunk calls (default 2).
	ChunkParallelism int `json:"chunk_parallelism" yaml:"chunk_parallelism"`
}

// ServerConfig holds settings for the HTTP boundary.
type ServerConfig struct {
	// ListenAddr is the bind address (default ":8080").
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// Config groups all component configurations.
type Config struct {
	Store      StoreConfig      `json:"store" yaml:"store"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Rewrite    RewriteConfig    `json:"rewrite" yaml:"rewrite"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}
