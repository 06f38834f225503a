// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rewrite sends Markdown to the external rewrite model and returns
// the improved text. The service owns chunking, per-call timeouts, the
// retry/backoff policy for transient provider failures, and validation
// that no image reference was dropped or invented by the model.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/doc-improver/internal/convert"
	"github.com/pdiddy/doc-improver/pkg/types"
)

// Backend abstracts the rewrite provider so tests can supply a fake and so
// any conforming provider can be substituted. Implementations classify
// their failures with types.Error kinds; errors without a kind are treated
// as fatal (malformed request, programming error).
type Backend interface {
	Rewrite(ctx context.Context, markdown string) (string, error)
}

const (
	defaultMaxRetries  = 3
	defaultCallTimeout = 2 * time.Minute
	defaultChunkBytes  = 24 << 10
	defaultParallelism = 2
)

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Service applies the rewrite policy on top of a Backend.
type Service struct {
	backend     Backend
	maxRetries  int
	callTimeout time.Duration
	chunkBytes  int
	parallelism int
}

// New creates a Service with cfg's policy settings, applying defaults for
// anything unset.
func New(backend Backend, cfg types.RewriteConfig) *Service {
	s := &Service{
		backend:     backend,
		maxRetries:  cfg.MaxRetries,
		callTimeout: cfg.CallTimeout,
		chunkBytes:  cfg.MaxChunkBytes,
		parallelism: cfg.ChunkParallelism,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}
	if s.callTimeout <= 0 {
		s.callTimeout = defaultCallTimeout
	}
	if s.chunkBytes <= 0 {
		s.chunkBytes = defaultChunkBytes
	}
	if s.parallelism <= 0 {
		s.parallelism = defaultParallelism
	}
	return s
}

// Rewrite returns the improved Markdown for the whole document. Bodies
// above the chunk ceiling are split at block boundaries, rewritten with
// bounded parallelism, and joined in original order.
func (s *Service) Rewrite(ctx context.Context, markdown string) (string, error) {
	if len(markdown) <= s.chunkBytes {
		return s.rewriteChunk(ctx, markdown)
	}

	chunks := packChunks(splitBlocks(markdown), s.chunkBytes)
	results := make([]string, len(chunks))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, s.parallelism)

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			out, err := s.rewriteChunk(ctx, chunk)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
				}
				mu.Unlock()
				cancel() // abandon remaining chunks
				return
			}
			results[i] = out
		}(i, chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return "", firstErr
	}
	return strings.Join(results, "\n\n"), nil
}

// rewriteChunk calls the backend for one chunk with retry, backoff with
// jitter, and reference validation. Retries cover rate limiting, transient
// unavailability, and invalid responses; authentication and unclassified
// failures surface immediately.
func (s *Service) rewriteChunk(ctx context.Context, chunk string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			backoff += time.Duration(rand.Int63n(int64(backoffBase))) // jitter
			select {
			case <-ctx.Done():
				return "", types.E(types.KindCancelled, "rewrite abandoned", ctx.Err())
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		out, err := s.backend.Rewrite(callCtx, chunk)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return "", types.E(types.KindCancelled, "rewrite abandoned", ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = types.E(types.KindServiceUnavailable, "rewrite provider call timed out", err)
			}
			kind := types.KindOf(err)
			if !kind.Retryable() {
				return "", err
			}
			lastErr = err
			continue
		}

		if err := validateOutput(chunk, out); err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}

	return "", fmt.Errorf("after %d attempts: %w", s.maxRetries+1, lastErr)
}

// validateOutput rejects empty output and any change to the multiset of
// image references between input and output. Matching is exact on the
// relative path: a near-miss reference would render as a broken link in
// the final document, so it is rejected here and retried.
func validateOutput(input, output string) error {
	if strings.TrimSpace(output) == "" {
		return types.Ef(types.KindInvalidResponse, "rewrite output was empty")
	}

	want := refCounts(convert.ImageRefs(input))
	got := refCounts(convert.ImageRefs(output))

	var dropped, invented []string
	for ref, n := range want {
		if got[ref] < n {
			dropped = append(dropped, ref)
		}
	}
	for ref, n := range got {
		if want[ref] < n {
			invented = append(invented, ref)
		}
	}

	if len(dropped) == 0 && len(invented) == 0 {
		return nil
	}

	sort.Strings(dropped)
	sort.Strings(invented)
	switch {
	case len(invented) == 0:
		return types.Ef(types.KindInvalidResponse, "rewrite output dropped image references: %s", strings.Join(dropped, ", "))
	case len(dropped) == 0:
		return types.Ef(types.KindInvalidResponse, "rewrite output invented image references: %s", strings.Join(invented, ", "))
	default:
		return types.Ef(types.KindInvalidResponse, "rewrite output altered image references (dropped %s; invented %s)",
			strings.Join(dropped, ", "), strings.Join(invented, ", "))
	}
}

func refCounts(refs []string) map[string]int {
	counts := make(map[string]int, len(refs))
	for _, r := range refs {
		counts[r]++
	}
	return counts
}
