package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Maaaxiii/toolchat/internal/backend"
	"github.com/Maaaxiii/toolchat/internal/log"
	"github.com/Maaaxiii/toolchat/internal/tools"
)

const (
	// DefaultPreamble is the fixed system instruction text bound to every
	// session, before the enumerated tool descriptions.
	DefaultPreamble = "You are a helpful AI assistant. Provide clear, concise, and helpful responses to user questions."

	// GenerationFallbackMessage is returned in place of a reply when the
	// model call fails.
	GenerationFallbackMessage = "I'm sorry, there was an error generating a response."

	// EmptyReplyFallbackMessage is returned when the model produced no text.
	EmptyReplyFallbackMessage = "I'm sorry, I couldn't generate a response."

	// emptyReplyError is the surfaced error message for an empty model reply.
	emptyReplyError = "The model did not return any text."
)

// Config contains the required parameters for the Orchestrator.
type Config struct {
	Client   backend.Client
	Registry *tools.Registry
	Logger   log.Logger

	// Preamble overrides DefaultPreamble when non-empty.
	Preamble string

	// RateLimiter proactively throttles generation calls.
	// nil installs the default (2 requests/sec sustained, burst of 5).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Client == nil {
		return errors.New("backend client is required")
	}
	if cfg.Registry == nil {
		return errors.New("tool registry is required")
	}
	return nil
}

// Orchestrator keeps exactly one live generation session matching the
// registry's current active subset and serializes all generation requests
// through it.
//
// Loading and error state are plain fields with synchronous change
// notification: subscribers registered via Subscribe are called after every
// transition.
type Orchestrator struct {
	client   backend.Client
	registry *tools.Registry
	preamble string
	logger   log.Logger
	limiter  *rate.Limiter

	mu      sync.Mutex // guards current; serializes generation requests
	current *Session

	stateMu   sync.RWMutex
	loading   bool
	lastErr   string
	listeners []func()
}

// New creates a session orchestrator. No session is constructed until the
// first EnsureCurrentSession, Prewarm, or GenerateReply call.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	preamble := cfg.Preamble
	if preamble == "" {
		preamble = DefaultPreamble
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(2, 5)
	}

	return &Orchestrator{
		client:   cfg.Client,
		registry: cfg.Registry,
		preamble: preamble,
		logger:   logger,
		limiter:  limiter,
	}, nil
}

// buildPreamble composes the bound instruction text: the fixed preamble plus
// the active subset's descriptions, verbatim, in declaration order. The result
// is reproducible for a given subset.
func (o *Orchestrator) buildPreamble(subset []*tools.Capability) string {
	if len(subset) == 0 {
		return o.preamble
	}

	var b strings.Builder
	b.WriteString(o.preamble)
	b.WriteString("\n\nYou can call the following tools when they help answer the user:\n")
	for _, c := range subset {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name(), c.Description())
	}
	return b.String()
}

// EnsureCurrentSession rebuilds the session slot if no session exists or the
// subset it was built with no longer matches the registry's active subset.
// Called synchronously before each generation, and explicitly by whoever
// toggles enabled tools.
func (o *Orchestrator) EnsureCurrentSession(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ensureLocked(ctx)
}

func (o *Orchestrator) ensureLocked(ctx context.Context) error {
	if status := o.client.Status(ctx); !status.Available() {
		return fmt.Errorf("%w: %s", ErrUnavailable, status)
	}

	subset := o.registry.ActiveSubset()
	preamble := o.buildPreamble(subset)
	fingerprint := fingerprintFor(preamble, o.registry.ActiveNames())

	if o.current != nil && o.current.Fingerprint() == fingerprint {
		return nil
	}

	handle, err := o.client.CreateSession(ctx, preamble, subset)
	if err != nil {
		return fmt.Errorf("%w: creating session: %v", ErrGeneration, err)
	}

	o.logger.Debug("rebuilt generation session",
		"tools", strings.Join(o.registry.ActiveNames(), ", "),
		"fingerprint", fingerprint)

	// The previous session, if any, is discarded with its backend context.
	o.current = newSession(handle, fingerprint)
	return nil
}

// GenerateReply produces the reply for text, draining the partial-snapshot
// stream and returning only the final value. On any failure it records the
// error message and returns a user-facing fallback string instead of
// propagating the error; callers that must distinguish check LastError.
//
// isLoading transitions false→true once a call holds the generation lock and
// true→false on every exit path. Concurrent calls queue behind the in-flight
// one; a queued call cannot touch the loading flag until the in-flight one
// has released it.
func (o *Orchestrator) GenerateReply(ctx context.Context, text string, onPartial backend.PartialFunc) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setLoading(true)
	o.setError("")
	defer o.setLoading(false)

	if err := o.limiter.Wait(ctx); err != nil {
		o.logger.Warn("rate limit wait aborted", "error", err)
		o.setError(fmt.Sprintf("Error: %v", err))
		return GenerationFallbackMessage
	}

	if err := o.ensureLocked(ctx); err != nil {
		o.logger.Warn("no usable session", "error", err)
		o.setError(fmt.Sprintf("Error: %v", err))
		return GenerationFallbackMessage
	}

	reply, err := o.current.StreamReply(ctx, text, onPartial)
	if err != nil {
		o.logger.Error("generation failed", "error", err)
		o.setError(fmt.Sprintf("Error: %v", err))
		return GenerationFallbackMessage
	}

	if strings.TrimSpace(reply) == "" {
		o.logger.Warn("model returned empty reply")
		o.setError(emptyReplyError)
		return EmptyReplyFallbackMessage
	}

	return reply
}

// ClearCurrent resets the current session's backend context. Used when the
// active conversation is switched or cleared, so no context leaks across
// conversations. A nil slot is a no-op.
func (o *Orchestrator) ClearCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		o.current.Reset()
	}
}

// Prewarm ensures a session exists and forwards the latency hint.
// Best-effort: failures are logged, never returned.
func (o *Orchestrator) Prewarm(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureLocked(ctx); err != nil {
		o.logger.Debug("prewarm skipped", "error", err)
		return
	}
	o.current.Prewarm(ctx)
}

// Status reports backend availability, for presentation-level gating.
func (o *Orchestrator) Status(ctx context.Context) backend.Status {
	return o.client.Status(ctx)
}

// IsLoading reports whether a generation call is in flight.
func (o *Orchestrator) IsLoading() bool {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.loading
}

// LastError returns the error message recorded by the most recent generation
// call, or "" if it succeeded. Reset at the start of every call.
func (o *Orchestrator) LastError() string {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.lastErr
}

// Subscribe registers fn to be called synchronously after each loading or
// error state transition.
func (o *Orchestrator) Subscribe(fn func()) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) setLoading(v bool) {
	o.stateMu.Lock()
	o.loading = v
	listeners := append([]func(){}, o.listeners...)
	o.stateMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (o *Orchestrator) setError(msg string) {
	o.stateMu.Lock()
	o.lastErr = msg
	listeners := append([]func(){}, o.listeners...)
	o.stateMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
