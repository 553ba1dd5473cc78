package backend

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Maaaxiii/toolchat/internal/config"
	"github.com/Maaaxiii/toolchat/internal/log"
	"github.com/Maaaxiii/toolchat/internal/tools"
)

// Genkit is the production Client backed by the Genkit framework.
// Capabilities must already be registered as Genkit tools (tools.RegisterAll)
// before sessions are created.
type Genkit struct {
	g        *genkit.Genkit
	provider string
	model    string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	maxTurns int
	logger   log.Logger
}

// NewGenkit creates a backend client over an initialized Genkit instance.
func NewGenkit(g *genkit.Genkit, cfg *config.Config, logger log.Logger) *Genkit {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Genkit{
		g:        g,
		provider: cfg.Provider,
		model:    cfg.FullModelName(),
		maxTurns: cfg.MaxTurns,
		logger:   logger,
	}
}

// Status reports backend availability.
//
// The gemini provider needs an API key in the environment; without one the
// feature is effectively switched off. A model that the configured provider
// plugin did not register is reported as not ready.
func (b *Genkit) Status(_ context.Context) Status {
	if b.g == nil {
		return StatusDeviceNotEligible
	}

	if b.provider == config.ProviderGemini &&
		os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return StatusFeatureDisabled
	}

	if genkit.LookupModel(b.g, b.model) == nil {
		return StatusModelNotReady
	}

	return StatusAvailable
}

// CreateSession binds a new session to the preamble and capability subset.
func (b *Genkit) CreateSession(_ context.Context, preamble string, subset []*tools.Capability) (Session, error) {
	if b.g == nil {
		return nil, fmt.Errorf("backend not initialized")
	}

	refs := tools.Refs(b.g, subset)
	names := make([]string, len(subset))
	for i, c := range subset {
		names[i] = c.Name()
	}

	b.logger.Debug("created generation session",
		"model", b.model,
		"tools", strings.Join(names, ", "))

	return &genkitSession{
		backend:  b,
		preamble: preamble,
		refs:     refs,
	}, nil
}

// genkitSession is one conversation context with the model. It accumulates
// message history locally and replays it on every generation; Genkit's
// generate loop performs the tool dispatch against the bound refs.
type genkitSession struct {
	backend  *Genkit
	preamble string
	refs     []ai.ToolRef

	mu   sync.Mutex // at most one generation in flight
	msgs []*ai.Message
}

func (s *genkitSession) StreamGenerate(ctx context.Context, prompt string, onPartial PartialFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]*ai.Message, 0, len(s.msgs)+1)
	messages = append(messages, s.msgs...)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(prompt)))

	// Accumulate chunk deltas into the latest full snapshot; consumers see
	// replace-not-append partials.
	var full strings.Builder

	opts := []ai.GenerateOption{
		ai.WithModelName(s.backend.model),
		ai.WithSystem(s.preamble),
		ai.WithMessages(messages...),
		ai.WithTools(s.refs...),
		ai.WithMaxTurns(s.backend.maxTurns),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			full.WriteString(chunk.Text())
			if onPartial != nil {
				onPartial(full.String())
			}
			return nil
		}),
	}

	resp, err := genkit.Generate(ctx, s.backend.g, opts...)
	if err != nil {
		// Nothing is committed to the session context on failure; a
		// truncated answer must never become history.
		return "", fmt.Errorf("generating reply: %w", err)
	}

	text := resp.Text()
	s.msgs = append(s.msgs,
		ai.NewUserMessage(ai.NewTextPart(prompt)),
		ai.NewModelMessage(ai.NewTextPart(text)),
	)

	return text, nil
}

// Prewarm verifies the model is resolvable so the first generation skips the
// lookup path. Best-effort only.
func (s *genkitSession) Prewarm(_ context.Context) {
	if genkit.LookupModel(s.backend.g, s.backend.model) == nil {
		s.backend.logger.Debug("prewarm: model not resolvable", "model", s.backend.model)
		return
	}
	s.backend.logger.Debug("prewarm: model ready", "model", s.backend.model)
}

func (s *genkitSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = nil
}
