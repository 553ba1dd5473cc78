package store

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a persisted chat with its ordered turns.
type Conversation struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     []*Turn
}

// LastTurn returns the most recent turn, or nil for an empty conversation.
func (c *Conversation) LastTurn() *Turn {
	if len(c.Turns) == 0 {
		return nil
	}
	return c.Turns[len(c.Turns)-1]
}

// Preview returns a short summary line for conversation lists.
func (c *Conversation) Preview() string {
	last := c.LastTurn()
	if last == nil {
		return "No messages yet"
	}
	const max = 80
	if len(last.Text) > max {
		return last.Text[:max] + "…"
	}
	return last.Text
}

// Turn is a single message within a conversation. FromUser distinguishes the
// user's messages from the assistant's.
type Turn struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Text           string
	FromUser       bool
	CreatedAt      time.Time
}

// NewTurn builds a turn with a fresh identifier.
func NewTurn(conversationID uuid.UUID, text string, fromUser bool, at time.Time) *Turn {
	return &Turn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Text:           text,
		FromUser:       fromUser,
		CreatedAt:      at,
	}
}
