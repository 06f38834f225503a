// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/doc-improver/pkg/types"
)

const defaultModel = "gpt-4o-mini"

// Instruction is the system prompt sent with every rewrite request. The
// reference-preservation clause is load-bearing: validateOutput rejects any
// response that breaks it.
const Instruction = `You are an expert editor. Improve the grammar, style, clarity, and tone of the user's Markdown document. Preserve the document structure: keep every heading, list, table, and code block in place, and keep every Markdown image reference (![...](...) syntax) exactly as it appears in the input, character for character. Do not add, remove, or reorder images. Return only the improved Markdown with no commentary.`

// OpenAIBackend rewrites Markdown through the OpenAI chat-completions API.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a backend for the given API key and model.
func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIBackend{client: openai.NewClient(apiKey), model: model}
}

// Rewrite sends the Markdown with the rewrite instruction and returns the
// model's output verbatim. Failures are classified onto the error taxonomy.
func (b *OpenAIBackend) Rewrite(ctx context.Context, markdown string) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Instruction},
			{Role: openai.ChatMessageRoleUser, Content: markdown},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", types.Ef(types.KindInvalidResponse, "rewrite provider returned no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return "", types.Ef(types.KindInvalidResponse, "rewrite output was truncated by the provider")
	}
	return choice.Message.Content, nil
}

// classifyOpenAIError maps provider errors onto the taxonomy. Malformed
// requests (other 4xx) stay unclassified and are therefore never retried.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return types.E(types.KindAuthenticationError, "rewrite provider rejected the credentials", err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return types.E(types.KindRateLimited, "rewrite provider is rate limiting", err)
		case apiErr.HTTPStatusCode >= 500:
			return types.E(types.KindServiceUnavailable, "rewrite provider is unavailable", err)
		default:
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	// Transport-level failure (connection refused, DNS, reset): transient.
	return types.E(types.KindServiceUnavailable, "could not reach the rewrite provider", err)
}
