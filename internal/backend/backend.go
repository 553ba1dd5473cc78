// Package backend abstracts the generative language model behind the
// orchestration layer.
//
// A Client creates Sessions: bound backend conversation contexts that stream
// partial replies and resolve tool invocation requests against the capability
// subset fixed at session construction. The orchestration layer never talks
// to the model SDK directly; it consumes these interfaces, which keeps the
// generation engine testable with a fake backend.
package backend

import (
	"context"

	"github.com/Maaaxiii/toolchat/internal/tools"
)

// Status reports whether the model backend can serve generations.
type Status int

const (
	// StatusAvailable means sessions can be created and used.
	StatusAvailable Status = iota

	// StatusDeviceNotEligible means the runtime cannot host the model at all.
	StatusDeviceNotEligible

	// StatusFeatureDisabled means the model feature is switched off
	// (for example a missing API key).
	StatusFeatureDisabled

	// StatusModelNotReady means the configured model is not (yet) resolvable.
	StatusModelNotReady
)

// Available reports whether generations can proceed. All unavailable reasons
// are treated identically by the core: no session is usable.
func (s Status) Available() bool {
	return s == StatusAvailable
}

// String returns the status identifier for logging.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusDeviceNotEligible:
		return "device_not_eligible"
	case StatusFeatureDisabled:
		return "feature_disabled"
	case StatusModelNotReady:
		return "model_not_ready"
	default:
		return "unknown"
	}
}

// Message returns the user-facing explanation for an unavailable status.
func (s Status) Message() string {
	switch s {
	case StatusAvailable:
		return ""
	case StatusDeviceNotEligible:
		return "Sorry, this device cannot run the AI model."
	case StatusFeatureDisabled:
		return "AI Chat is unavailable because the model feature has not been turned on."
	case StatusModelNotReady:
		return "AI Chat isn't ready yet. Try again later."
	default:
		return "AI Chat is currently unavailable."
	}
}

// PartialFunc receives partial reply snapshots during streaming. Each snapshot
// replaces the previous one; it is the latest full text so far, not a delta.
type PartialFunc func(snapshot string)

// Client is the model backend collaborator.
type Client interface {
	// Status reports current backend availability.
	Status(ctx context.Context) Status

	// CreateSession opens a new conversation context bound to the given
	// system preamble and capability subset. The binding is immutable;
	// changing the desired tools requires creating a new session.
	CreateSession(ctx context.Context, preamble string, subset []*tools.Capability) (Session, error)
}

// Session is one live conversation context with the model.
//
// Implementations resolve tool invocation requests signaled by the model
// against the subset bound at creation, invoke the capability, and feed its
// textual result back into the generation — callers only ever observe text.
type Session interface {
	// StreamGenerate produces a reply to prompt, reporting partial snapshots
	// through onPartial (may be nil) and returning the final text.
	// On failure no partial state is committed to the session context.
	StreamGenerate(ctx context.Context, prompt string, onPartial PartialFunc) (string, error)

	// Prewarm hints the backend to reduce first-token latency. Best-effort:
	// it never fails the caller.
	Prewarm(ctx context.Context)

	// Reset discards accumulated conversational context, returning the
	// session to its just-constructed state with the same bound
	// preamble and tools.
	Reset()
}
