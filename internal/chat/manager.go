// Package chat coordinates persisted conversations with reply generation:
// the send-message round trip, conversation lifecycle, and automatic titling.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Maaaxiii/toolchat/internal/backend"
	"github.com/Maaaxiii/toolchat/internal/log"
	"github.com/Maaaxiii/toolchat/internal/store"
)

// titleMaxLen caps auto-generated conversation titles, counted in runes.
const titleMaxLen = 50

// Store is the persistence surface the manager needs.
type Store interface {
	CreateConversation(ctx context.Context, c *store.Conversation) error
	SaveConversation(ctx context.Context, id uuid.UUID, title string, at time.Time) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	ListConversations(ctx context.Context) ([]*store.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	AppendTurns(ctx context.Context, conversationID uuid.UUID, turns ...*store.Turn) error
	ClearTurns(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

// Replier produces assistant replies. It never returns an error from
// GenerateReply; failures surface as fallback text plus a non-empty
// LastError.
type Replier interface {
	GenerateReply(ctx context.Context, text string, onPartial backend.PartialFunc) string
	LastError() string
	ClearCurrent()
	Prewarm(ctx context.Context)
}

// Config contains the required parameters for the Manager.
type Config struct {
	Store   Store
	Replier Replier
	Logger  log.Logger

	// OnPartial receives streaming reply snapshots during SendMessage.
	OnPartial backend.PartialFunc

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Manager holds the active conversation and runs the send-message round
// trip against it. All operations are serialized; persistence failures of
// the user's turn abort generation so the stored history never diverges
// from what the model saw.
type Manager struct {
	store     Store
	replier   Replier
	logger    log.Logger
	onPartial backend.PartialFunc
	now       func() time.Time

	mu      sync.Mutex
	current *store.Conversation
	lastErr string
}

// NewManager creates a conversation manager with no active conversation.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Replier == nil {
		return nil, fmt.Errorf("replier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		store:     cfg.Store,
		replier:   cfg.Replier,
		logger:    logger,
		onPartial: cfg.OnPartial,
		now:       now,
	}, nil
}

// Current returns the active conversation, or nil when none is selected.
func (m *Manager) Current() *store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastError returns the error message from the most recent operation, or "".
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// CreateConversation starts a new conversation and makes it active. An empty
// title falls back to a timestamped default. If persistence fails the
// in-memory conversation is still created and returned, so the user can keep
// chatting; the error is recorded for display.
func (m *Manager) CreateConversation(ctx context.Context, title string) *store.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Chat " + now.Format("Jan 2, 2006 at 3:04 PM")
	}
	c := &store.Conversation{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.lastErr = ""
	if err := m.store.CreateConversation(ctx, c); err != nil {
		m.logger.Error("persisting new conversation failed", "error", err)
		m.lastErr = fmt.Sprintf("Error: %v", err)
	}

	m.current = c
	m.replier.ClearCurrent()
	return c
}

// LoadConversation makes an existing conversation active, reloading its turns
// from the store. The generation context is always cleared, even on load
// failure, so stale context cannot bleed into the next conversation.
func (m *Manager) LoadConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replier.ClearCurrent()
	m.lastErr = ""

	c, err := m.store.GetConversation(ctx, id)
	if err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return fmt.Errorf("loading conversation %s: %w", id, err)
	}
	m.current = c
	return nil
}

// ListConversations returns all conversations, most recently updated first.
func (m *Manager) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	return m.store.ListConversations(ctx)
}

// DeleteConversation removes a conversation. If it is the active one, the
// active reference and generation context are cleared before the delete, so
// no path can observe a deleted active conversation.
func (m *Manager) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.ID == id {
		m.current = nil
		m.replier.ClearCurrent()
	}

	if err := m.store.DeleteConversation(ctx, id); err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return fmt.Errorf("deleting conversation %s: %w", id, err)
	}
	m.lastErr = ""
	return nil
}

// RenameConversation sets an explicit title. The in-memory conversation is
// updated before the save is attempted and stays updated even when the save
// fails; a later successful save catches the store up.
func (m *Manager) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}

	now := m.now()
	if m.current != nil && m.current.ID == id {
		m.current.Title = title
		m.current.UpdatedAt = now
	}

	if err := m.store.SaveConversation(ctx, id, title, now); err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return fmt.Errorf("renaming conversation %s: %w", id, err)
	}
	m.lastErr = ""
	return nil
}

// ClearConversation removes all turns from the active conversation and resets
// the generation context. A nil active conversation is a no-op. The in-memory
// turns are emptied before the delete is attempted and stay empty even when
// it fails, matching what the cleared generation context sees.
func (m *Manager) ClearConversation(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}

	m.replier.ClearCurrent()
	now := m.now()
	m.current.Turns = nil
	m.current.UpdatedAt = now

	if err := m.store.ClearTurns(ctx, m.current.ID, now); err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return fmt.Errorf("clearing conversation: %w", err)
	}
	m.lastErr = ""
	return nil
}

// Prewarm forwards the latency hint to the generation layer.
func (m *Manager) Prewarm(ctx context.Context) {
	m.replier.Prewarm(ctx)
}

// SendMessage runs the full round trip for one user message: persist the
// user's turn, generate the assistant's reply, persist it, and synthesize a
// title after the first exchange. Empty input or a missing active
// conversation is a silent no-op.
//
// If persisting the user's turn fails, generation is aborted so the stored
// conversation and the model's context never diverge.
func (m *Manager) SendMessage(ctx context.Context, text string) (*store.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, nil
	}
	m.lastErr = ""

	userTurn := store.NewTurn(m.current.ID, text, true, m.now())
	if err := m.store.AppendTurns(ctx, m.current.ID, userTurn); err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return nil, fmt.Errorf("persisting user turn: %w", err)
	}
	m.current.Turns = append(m.current.Turns, userTurn)
	m.current.UpdatedAt = userTurn.CreatedAt

	reply := m.replier.GenerateReply(ctx, text, m.onPartial)
	if genErr := m.replier.LastError(); genErr != "" {
		m.lastErr = genErr
	}

	assistantTurn := store.NewTurn(m.current.ID, reply, false, m.now())
	if err := m.store.AppendTurns(ctx, m.current.ID, assistantTurn); err != nil {
		m.lastErr = fmt.Sprintf("Error: %v", err)
		return nil, fmt.Errorf("persisting assistant turn: %w", err)
	}
	m.current.Turns = append(m.current.Turns, assistantTurn)
	m.current.UpdatedAt = assistantTurn.CreatedAt

	if len(m.current.Turns) == 2 {
		m.synthesizeTitle(ctx)
	}

	return assistantTurn, nil
}

// synthesizeTitle asks the model for a short title after the first exchange.
// Best-effort: any failure, an empty result, or an over-long result keeps the
// default title. Called with m.mu held.
func (m *Manager) synthesizeTitle(ctx context.Context) {
	user, assistant := m.current.Turns[0], m.current.Turns[1]

	prompt := fmt.Sprintf(
		"Generate a very short title (at most five words) summarizing this conversation. "+
			"Reply with the title only, no quotes or punctuation.\n\nUser: %s\nAssistant: %s",
		user.Text, assistant.Text)

	title := m.replier.GenerateReply(ctx, prompt, nil)
	if m.replier.LastError() != "" {
		m.logger.Debug("title generation failed, keeping default")
		return
	}

	title = sanitizeTitle(title)
	if title == "" || utf8.RuneCountInString(title) > titleMaxLen {
		m.logger.Debug("discarding unusable title", "title", title)
		return
	}

	if err := m.store.SaveConversation(ctx, m.current.ID, title, m.now()); err != nil {
		m.logger.Warn("persisting title failed", "error", err)
		return
	}
	m.current.Title = title
}

// sanitizeTitle strips whitespace, surrounding quotes, and newlines from a
// model-produced title.
func sanitizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”‘’`)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
