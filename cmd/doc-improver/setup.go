// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/doc-improver/internal/convert"
	"github.com/pdiddy/doc-improver/internal/pipeline"
	"github.com/pdiddy/doc-improver/internal/rewrite"
	"github.com/pdiddy/doc-improver/internal/secrets"
	"github.com/pdiddy/doc-improver/internal/store"
	"github.com/pdiddy/doc-improver/pkg/types"
)

const registryFile = "sessions.db"

// loadConfig assembles the runtime configuration from the config file and
// environment, applying defaults for anything unset.
func loadConfig() (types.Config, error) {
	cfg := types.Config{
		Store: types.StoreConfig{
			BaseDir:        viper.GetString("store.base_dir"),
			MaxUploadBytes: viper.GetInt64("store.max_upload_bytes"),
			SessionMaxAge:  viper.GetDuration("store.session_max_age"),
			SweepInterval:  viper.GetDuration("store.sweep_interval"),
		},
		Conversion: types.ConversionConfig{
			PandocPath: viper.GetString("conversion.pandoc_path"),
			Timeout:    viper.GetDuration("conversion.timeout"),
		},
		Rewrite: types.RewriteConfig{
			Provider:         viper.GetString("rewrite.provider"),
			Model:            viper.GetString("rewrite.model"),
			APIKey:           viper.GetString("rewrite.api_key"),
			Endpoint:         viper.GetString("rewrite.endpoint"),
			MaxRetries:       viper.GetInt("rewrite.max_retries"),
			CallTimeout:      viper.GetDuration("rewrite.call_timeout"),
			MaxChunkBytes:    viper.GetInt("rewrite.max_chunk_bytes"),
			ChunkParallelism: viper.GetInt("rewrite.chunk_parallelism"),
		},
		Server: types.ServerConfig{
			ListenAddr: viper.GetString("server.listen_addr"),
		},
	}

	if cfg.Store.BaseDir == "" {
		cfg.Store.BaseDir = filepath.Join(os.TempDir(), "doc-improver")
	}
	abs, err := filepath.Abs(cfg.Store.BaseDir)
	if err != nil {
		return cfg, fmt.Errorf("resolving store.base_dir: %w", err)
	}
	cfg.Store.BaseDir = abs

	if cfg.Store.SessionMaxAge <= 0 {
		cfg.Store.SessionMaxAge = time.Hour
	}
	if cfg.Store.SweepInterval <= 0 {
		cfg.Store.SweepInterval = time.Hour
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	return cfg, nil
}

// newBackend selects the rewrite provider from configuration and secrets.
func newBackend(cfg types.RewriteConfig) (rewrite.Backend, error) {
	switch cfg.Provider {
	case "", "openai":
		key := secretDefault(secrets.OpenAIAPIKey, cfg.APIKey)
		if key == "" {
			return nil, fmt.Errorf("no OpenAI API key: set rewrite.api_key or .secrets/%s", secrets.OpenAIAPIKey)
		}
		return rewrite.NewOpenAIBackend(key, cfg.Model), nil
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("rewrite.endpoint is required for the http provider")
		}
		return rewrite.NewHTTPBackend(cfg.Endpoint, secretDefault(secrets.RewriteEndpointToken, "")), nil
	default:
		return nil, fmt.Errorf("unknown rewrite provider %q (want openai or http)", cfg.Provider)
	}
}

// buildOrchestrator wires the pipeline stages together. The returned close
// function releases the session registry.
func buildOrchestrator(cfg types.Config, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	conv, err := convert.New(cfg.Conversion)
	if err != nil {
		return nil, nil, err
	}

	backend, err := newBackend(cfg.Rewrite)
	if err != nil {
		return nil, nil, err
	}
	svc := rewrite.New(backend, cfg.Rewrite)

	reg, err := pipeline.OpenRegistry(filepath.Join(cfg.Store.BaseDir, registryFile))
	if err != nil {
		return nil, nil, err
	}

	orch := pipeline.New(st, conv, svc, reg, logger)
	return orch, func() { reg.Close() }, nil
}
