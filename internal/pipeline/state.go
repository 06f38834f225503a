// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"

	"github.com/pdiddy/doc-improver/pkg/types"
)

// allowedTransition reports whether a session may move from one state to
// the next. The pipeline advances strictly forward; any non-terminal state
// may fall to failed.
func allowedTransition(from, to types.SessionState) bool {
	if to == types.StateFailed {
		return !from.Terminal()
	}
	switch from {
	case types.StateReceived:
		return to == types.StateExtracting
	case types.StateExtracting:
		return to == types.StateRewriting
	case types.StateRewriting:
		return to == types.StateReassembling
	case types.StateReassembling:
		return to == types.StateReady
	default:
		return false
	}
}

// transitionError describes a rejected state change. The caller supplies
// the state it expected to leave, which makes concurrent interference
// observable instead of silently lost.
func transitionError(id string, from, to, actual types.SessionState) error {
	if actual != from {
		return fmt.Errorf("invalid transition for session %s: expected %s, found %s", id, from, actual)
	}
	return fmt.Errorf("disallowed transition for session %s: %s -> %s", id, from, to)
}
