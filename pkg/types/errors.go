// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure. Every error surfaced across a
// component boundary carries exactly one kind; the boundary layer maps the
// kind to a user-facing status.
type ErrorKind string

const (
	// KindUnsupportedFormat rejects uploads that are not .docx.
	KindUnsupportedFormat ErrorKind = "unsupported_format"

	// KindPayloadTooLarge rejects uploads above the configured ceiling.
	KindPayloadTooLarge ErrorKind = "payload_too_large"

	// KindResourceExhausted signals temp-space or session allocation failure.
	KindResourceExhausted ErrorKind = "resource_exhausted"

	// KindConversionError wraps a conversion-tool failure (non-zero exit,
	// malformed output, or subprocess timeout).
	KindConversionError ErrorKind = "conversion_error"

	// KindMissingAsset signals a Markdown image reference with no backing
	// file in the session's media directory.
	KindMissingAsset ErrorKind = "missing_asset"

	// KindRateLimited signals the rewrite provider asked for backoff. Retryable.
	KindRateLimited ErrorKind = "rate_limited"

	// KindServiceUnavailable signals a transient rewrite-provider failure,
	// including per-call timeouts. Retryable.
	KindServiceUnavailable ErrorKind = "service_unavailable"

	// KindInvalidResponse signals empty, truncated, or reference-dropping
	// rewrite output. Retryable a bounded number of times.
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindAuthenticationError signals a rejected credential. Never retried.
	KindAuthenticationError ErrorKind = "authentication_error"

	// KindNotFound signals an unknown, purged, or expired session reference.
	KindNotFound ErrorKind = "not_found"

	// KindCancelled signals the caller abandoned the session mid-pipeline.
	KindCancelled ErrorKind = "cancelled"
)

// Retryable reports whether the kind is transient from the rewrite
// service's point of view. All other kinds are fatal to the current run.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServiceUnavailable, KindInvalidResponse:
		return true
	default:
		return false
	}
}

// Error is a classified pipeline error. Message is safe to show to the
// caller; Err retains the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error. A nil cause is allowed.
func E(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Ef builds a classified error with a formatted message and no cause.
func Ef(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. Errors that
// carry no kind are reported as KindServiceUnavailable by the rewrite layer
// and as KindConversionError by the converter; here they map to "".
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// MessageOf returns the safe message from a classified error, or the plain
// error text when err carries no kind.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
