// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web is the HTTP boundary: upload, status, download, media, and
// purge routes on top of the pipeline orchestrator. It translates error
// kinds to HTTP statuses and never exposes raw tool or provider output
// beyond the classified message.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/doc-improver/pkg/types"
)

// Pipeline is the orchestrator surface the boundary needs.
type Pipeline interface {
	Process(ctx context.Context, data []byte, filename string) (*types.Result, error)
	Status(ctx context.Context, id string) (*types.Session, error)
	Download(ctx context.Context, id string) (path, name string, err error)
	Media(ctx context.Context, id, name string) (string, error)
	Purge(ctx context.Context, id string) error
}

// Server serves the document-improvement API.
type Server struct {
	pipeline  Pipeline
	logger    *slog.Logger
	maxUpload int64
}

// NewServer builds a Server. maxUpload bounds the accepted request body;
// zero applies the store's default ceiling.
func NewServer(p Pipeline, logger *slog.Logger, maxUpload int64) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Server{pipeline: p, logger: logger, maxUpload: maxUpload}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/{id}", s.handleStatus)
		r.Get("/{id}/download", s.handleDownload)
		r.Delete("/{id}", s.handlePurge)
	})
	r.Get("/media/{id}/{name}", s.handleMedia)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// statusOf maps an error kind to the HTTP status returned to the client.
func statusOf(kind types.ErrorKind) int {
	switch kind {
	case types.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case types.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConversionError, types.KindMissingAsset:
		return http.StatusUnprocessableEntity
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindResourceExhausted:
		return http.StatusServiceUnavailable
	case types.KindServiceUnavailable, types.KindInvalidResponse, types.KindAuthenticationError:
		// Upstream provider trouble. The client's request was fine.
		return http.StatusBadGateway
	case types.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := types.KindOf(err)
	status := statusOf(kind)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "kind", string(kind), "error", err)
	}
	s.writeJSON(w, status, map[string]errorBody{
		"error": {Kind: string(kind), Message: types.MessageOf(err)},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}
