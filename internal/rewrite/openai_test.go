// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/doc-improver/pkg/types"
)

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind types.ErrorKind
	}{
		{
			name:     "unauthorized",
			err:      &openai.APIError{HTTPStatusCode: http.StatusUnauthorized},
			wantKind: types.KindAuthenticationError,
		},
		{
			name:     "forbidden",
			err:      &openai.APIError{HTTPStatusCode: http.StatusForbidden},
			wantKind: types.KindAuthenticationError,
		},
		{
			name:     "rate limited",
			err:      &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests},
			wantKind: types.KindRateLimited,
		},
		{
			name:     "server error",
			err:      &openai.APIError{HTTPStatusCode: http.StatusInternalServerError},
			wantKind: types.KindServiceUnavailable,
		},
		{
			name:     "transport failure",
			err:      &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			wantKind: types.KindServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyOpenAIError(tt.err)
			assert.Equal(t, tt.wantKind, types.KindOf(got))
		})
	}
}

func TestClassifyOpenAIErrorLeavesBadRequestsUnclassified(t *testing.T) {
	err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusBadRequest})
	assert.Equal(t, types.ErrorKind(""), types.KindOf(err), "bad requests must not be retried")
}

func TestClassifyOpenAIErrorPassesThroughContextErrors(t *testing.T) {
	assert.ErrorIs(t, classifyOpenAIError(context.Canceled), context.Canceled)
	assert.ErrorIs(t, classifyOpenAIError(context.DeadlineExceeded), context.DeadlineExceeded)
}
