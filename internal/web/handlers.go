// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pdiddy/doc-improver/pkg/types"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// uploadResponse is the body for a successful POST /api/documents.
type uploadResponse struct {
	SessionID        string `json:"session_id"`
	SourceName       string `json:"source_name"`
	OriginalMarkdown string `json:"original_markdown"`
	ImprovedMarkdown string `json:"improved_markdown"`
	DownloadURL      string `json:"download_url"`
}

// handleUpload runs the full pipeline on a multipart upload.
// POST /api/documents, form field "document".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20)) // payload plus multipart framing

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]errorBody{
			"error": {Message: `multipart form field "document" is required`},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		s.writeError(w, r, types.E(types.KindResourceExhausted, "could not read upload", err))
		return
	}
	if int64(len(data)) > s.maxUpload {
		s.writeError(w, r, types.Ef(types.KindPayloadTooLarge, "upload exceeds the %d byte limit", s.maxUpload))
		return
	}

	result, err := s.pipeline.Process(r.Context(), data, header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		SessionID:        result.SessionID,
		SourceName:       result.SourceName,
		OriginalMarkdown: result.OriginalMarkdown,
		ImprovedMarkdown: result.ImprovedMarkdown,
		DownloadURL:      "/api/documents/" + result.SessionID + "/download",
	})
}

// handleStatus reports the session row.
// GET /api/documents/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, err := s.pipeline.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// The working directory layout is not part of the API.
	session.Dir = ""
	session.OutputPath = ""
	s.writeJSON(w, http.StatusOK, session)
}

// handleDownload streams the improved document.
// GET /api/documents/{id}/download
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, name, err := s.pipeline.Download(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// handleMedia serves an extracted image for preview rendering.
// GET /media/{id}/{name}
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	path, err := s.pipeline.Media(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}

// handlePurge deletes the session and everything it owns.
// DELETE /api/documents/{id}
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.Purge(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
