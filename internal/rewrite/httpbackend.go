// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/doc-improver/internal/httputil"
	"github.com/pdiddy/doc-improver/pkg/types"
)

// HTTPBackend talks to any rewrite provider implementing the plain
// text-in/text-out contract: POST a JSON body {"text", "instruction"},
// receive {"text"} on success or {"error"} with a non-2xx status. This
// keeps the provider substitutable without touching the orchestrator.
type HTTPBackend struct {
	Client   *http.Client
	Endpoint string
	Token    string
}

// NewHTTPBackend creates a backend for the given endpoint. token is an
// optional bearer credential.
func NewHTTPBackend(endpoint, token string) *HTTPBackend {
	return &HTTPBackend{
		Client:   &http.Client{Timeout: 5 * time.Minute},
		Endpoint: endpoint,
		Token:    token,
	}
}

type rewriteRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

type rewriteResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Rewrite posts the Markdown and returns the provider's text verbatim.
// Transient statuses are retried at the transport level by DoWithRetry;
// what escapes is classified for the service's own policy.
func (b *HTTPBackend) Rewrite(ctx context.Context, markdown string) (string, error) {
	body, err := json.Marshal(rewriteRequest{Text: markdown, Instruction: Instruction})
	if err != nil {
		return "", fmt.Errorf("encoding rewrite request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating rewrite request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.E(types.KindServiceUnavailable, "could not reach the rewrite provider", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", types.Ef(types.KindAuthenticationError, "rewrite provider rejected the credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", types.Ef(types.KindRateLimited, "rewrite provider is rate limiting")
	case resp.StatusCode >= 500:
		return "", types.Ef(types.KindServiceUnavailable, "rewrite provider returned HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("rewrite provider returned HTTP %d", resp.StatusCode)
	}

	var rr rewriteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", types.E(types.KindInvalidResponse, "rewrite provider returned malformed JSON", err)
	}
	if rr.Error != "" {
		return "", types.Ef(types.KindInvalidResponse, "rewrite provider reported: %s", rr.Error)
	}
	return rr.Text, nil
}
