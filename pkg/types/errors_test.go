// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "direct classified error",
			err:  E(KindConversionError, "pandoc exited 1", errors.New("exit status 1")),
			want: KindConversionError,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("stage extract: %w", Ef(KindPayloadTooLarge, "upload is 12MiB")),
			want: KindPayloadTooLarge,
		},
		{
			name: "plain error carries no kind",
			err:  errors.New("boom"),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	retryable := []ErrorKind{KindRateLimited, KindServiceUnavailable, KindInvalidResponse}
	fatal := []ErrorKind{
		KindUnsupportedFormat, KindPayloadTooLarge, KindResourceExhausted,
		KindConversionError, KindMissingAsset, KindAuthenticationError,
		KindNotFound, KindCancelled,
	}

	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("%s should not be retryable", k)
		}
	}
}

func TestMessageOf(t *testing.T) {
	err := E(KindInvalidResponse, "model dropped image references", errors.New("raw provider detail"))
	if got := MessageOf(err); got != "model dropped image references" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := MessageOf(errors.New("plain")); got != "plain" {
		t.Errorf("MessageOf(plain) = %q", got)
	}
}

func TestSessionStateTerminal(t *testing.T) {
	for _, s := range []SessionState{StateReceived, StateExtracting, StateRewriting, StateReassembling} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []SessionState{StateReady, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
