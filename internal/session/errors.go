package session

import "errors"

// Sentinel errors for the generation path.
// Checked with errors.Is() at the orchestration boundaries.
var (
	// ErrUnavailable indicates the model backend cannot serve generations
	// (feature off, device ineligible, model not ready). This gates the whole
	// generation path and is a persistent mode, not a transient failure.
	ErrUnavailable = errors.New("model backend unavailable")

	// ErrGeneration indicates a streaming/model call failed mid-flight.
	// Non-fatal: callers substitute a fallback reply and surface the message.
	ErrGeneration = errors.New("generation failed")
)
