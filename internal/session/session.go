// Package session owns the live generation session and the orchestrator that
// keeps it in sync with the tool registry's active subset.
//
// A Session is an immutable snapshot: it binds (preamble, tool subset) at
// construction and never changes in place. When the desired tools change, the
// orchestrator discards the session and builds a new one; the decision uses an
// explicit invalidation token (a fingerprint over the preamble and the active
// tool names) rather than object identity.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Maaaxiii/toolchat/internal/backend"
)

// Session wraps one bound backend conversation context together with the
// invalidation token it was built with.
type Session struct {
	handle      backend.Session
	fingerprint string
}

func newSession(handle backend.Session, fingerprint string) *Session {
	return &Session{handle: handle, fingerprint: fingerprint}
}

// StreamReply produces a reply to text, reporting replace-not-append partial
// snapshots through onPartial and returning the final text. Tool invocations
// requested by the model are resolved inside the backend against the bound
// subset; the caller only observes text.
func (s *Session) StreamReply(ctx context.Context, text string, onPartial backend.PartialFunc) (string, error) {
	return s.handle.StreamGenerate(ctx, text, onPartial)
}

// Prewarm forwards the latency hint to the backend. Never fails.
func (s *Session) Prewarm(ctx context.Context) {
	s.handle.Prewarm(ctx)
}

// Reset discards the backend-side conversational context while keeping the
// bound preamble and tools.
func (s *Session) Reset() {
	s.handle.Reset()
}

// Fingerprint returns the invalidation token the session was built with.
func (s *Session) Fingerprint() string {
	return s.fingerprint
}

// fingerprintFor derives the invalidation token for a (preamble, tool subset)
// pair. Tool names are joined in their deterministic declaration order, so
// equal bindings always produce equal tokens.
func fingerprintFor(preamble string, toolNames []string) string {
	h := sha256.New()
	h.Write([]byte(preamble))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(toolNames, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
