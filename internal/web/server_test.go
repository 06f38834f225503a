// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/doc-improver/pkg/types"
)

const testID = "0123456789abcdef0123456789abcdef"

type fakePipeline struct {
	process  func(ctx context.Context, data []byte, filename string) (*types.Result, error)
	status   func(ctx context.Context, id string) (*types.Session, error)
	download func(ctx context.Context, id string) (string, string, error)
	media    func(ctx context.Context, id, name string) (string, error)
	purge    func(ctx context.Context, id string) error
}

func (f *fakePipeline) Process(ctx context.Context, data []byte, filename string) (*types.Result, error) {
	return f.process(ctx, data, filename)
}
func (f *fakePipeline) Status(ctx context.Context, id string) (*types.Session, error) {
	return f.status(ctx, id)
}
func (f *fakePipeline) Download(ctx context.Context, id string) (string, string, error) {
	return f.download(ctx, id)
}
func (f *fakePipeline) Media(ctx context.Context, id, name string) (string, error) {
	return f.media(ctx, id, name)
}
func (f *fakePipeline) Purge(ctx context.Context, id string) error {
	return f.purge(ctx, id)
}

func newTestServer(t *testing.T, p Pipeline, maxUpload int64) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(p, logger, maxUpload).Handler()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHappyPath(t *testing.T) {
	var gotFilename string
	p := &fakePipeline{
		process: func(_ context.Context, data []byte, filename string) (*types.Result, error) {
			gotFilename = filename
			assert.Equal(t, []byte("docx-bytes"), data)
			return &types.Result{
				SessionID:        testID,
				SourceName:       "report.docx",
				OriginalMarkdown: "original",
				ImprovedMarkdown: "improved",
				OutputPath:       "/work/" + testID + "/improved.docx",
			}, nil
		},
	}
	handler := newTestServer(t, p, 0)

	body, contentType := multipartBody(t, "document", "report.docx", []byte("docx-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "report.docx", gotFilename)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testID, resp.SessionID)
	assert.Equal(t, "improved", resp.ImprovedMarkdown)
	assert.Equal(t, "/api/documents/"+testID+"/download", resp.DownloadURL)
}

func TestUploadRequiresDocumentField(t *testing.T) {
	handler := newTestServer(t, &fakePipeline{}, 0)

	body, contentType := multipartBody(t, "attachment", "report.docx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unsupported format", types.Ef(types.KindUnsupportedFormat, "only .docx"), http.StatusUnsupportedMediaType},
		{"conversion error", types.Ef(types.KindConversionError, "tool failed"), http.StatusUnprocessableEntity},
		{"missing asset", types.Ef(types.KindMissingAsset, "no such image"), http.StatusUnprocessableEntity},
		{"rate limited", types.Ef(types.KindRateLimited, "slow down"), http.StatusTooManyRequests},
		{"provider down", types.Ef(types.KindServiceUnavailable, "upstream"), http.StatusBadGateway},
		{"bad credentials", types.Ef(types.KindAuthenticationError, "rejected"), http.StatusBadGateway},
		{"cancelled", types.Ef(types.KindCancelled, "abandoned"), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{
				process: func(context.Context, []byte, string) (*types.Result, error) {
					return nil, tt.err
				},
			}
			handler := newTestServer(t, p, 0)

			body, contentType := multipartBody(t, "document", "report.docx", []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(types.KindOf(tt.err)), resp["error"].Kind)
			assert.Equal(t, types.MessageOf(tt.err), resp["error"].Message)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	p := &fakePipeline{
		process: func(context.Context, []byte, string) (*types.Result, error) {
			t.Fatal("pipeline must not run for oversized uploads")
			return nil, nil
		},
	}
	handler := newTestServer(t, p, 64)

	body, contentType := multipartBody(t, "document", "report.docx", bytes.Repeat([]byte("x"), 200))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStatusHidesPaths(t *testing.T) {
	p := &fakePipeline{
		status: func(_ context.Context, id string) (*types.Session, error) {
			require.Equal(t, testID, id)
			return &types.Session{
				ID:         testID,
				Dir:        "/work/" + testID,
				State:      types.StateRewriting,
				SourceName: "report.docx",
				OutputPath: "/work/" + testID + "/improved.docx",
			}, nil
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+testID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rewriting"`)
	assert.NotContains(t, rec.Body.String(), "/work/")
}

func TestStatusUnknownSession(t *testing.T) {
	p := &fakePipeline{
		status: func(context.Context, string) (*types.Session, error) {
			return nil, types.Ef(types.KindNotFound, "unknown session")
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+testID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadStreamsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "improved.docx")
	require.NoError(t, os.WriteFile(path, []byte("docx-bytes"), 0o644))

	p := &fakePipeline{
		download: func(context.Context, string) (string, string, error) {
			return path, "report-improved.docx", nil
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/"+testID+"/download", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "docx-bytes", rec.Body.String())
	assert.Equal(t, docxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "report-improved.docx"))
}

func TestMediaServesAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img1.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	var gotName string
	p := &fakePipeline{
		media: func(_ context.Context, id, name string) (string, error) {
			gotName = name
			return path, nil
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodGet, "/media/"+testID+"/img1.png", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "img1.png", gotName)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())
}

func TestMediaUnknownAsset(t *testing.T) {
	p := &fakePipeline{
		media: func(context.Context, string, string) (string, error) {
			return "", types.Ef(types.KindNotFound, "unknown media asset")
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodGet, "/media/"+testID+"/escape.png", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurge(t *testing.T) {
	var purged string
	p := &fakePipeline{
		purge: func(_ context.Context, id string) error {
			purged = id
			return nil
		},
	}
	handler := newTestServer(t, p, 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/"+testID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testID, purged)
}
