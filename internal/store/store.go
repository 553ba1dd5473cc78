// Package store persists conversations and their turns in PostgreSQL.
//
// All write paths that extend a conversation lock its row first, so turn
// positions stay dense and ordered even with concurrent writers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Maaaxiii/toolchat/internal/log"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Querier is the subset of pgxpool.Pool the store needs. A *pgxpool.Pool
// satisfies it; tests substitute a mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides conversation persistence over PostgreSQL.
type Store struct {
	db     Querier
	logger log.Logger
}

// New creates a store backed by db.
func New(db Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// CreateConversation inserts a new conversation row.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`,
		c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	return nil
}

// SaveConversation updates a conversation's title and bumps updated_at.
func (s *Store) SaveConversation(ctx context.Context, id uuid.UUID, title string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET title = $2, updated_at = $3 WHERE id = $1`,
		id, title, at)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation; its turns go with it via the
// foreign key cascade. Deleting a missing conversation is not an error.
func (s *Store) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	return nil
}

// ListConversations returns all conversations, most recently updated first.
// Each conversation carries at most its latest turn, enough for list previews;
// use GetConversation for the full history.
func (s *Store) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       t.id, t.content, t.from_user, t.created_at
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, content, from_user, created_at
			FROM turns WHERE conversation_id = c.id
			ORDER BY position DESC LIMIT 1
		) t ON true
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c := &Conversation{}
		var (
			turnID    *uuid.UUID
			content   *string
			fromUser  *bool
			createdAt *time.Time
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
			&turnID, &content, &fromUser, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if turnID != nil {
			c.Turns = []*Turn{{
				ID:             *turnID,
				ConversationID: c.ID,
				Text:           *content,
				FromUser:       *fromUser,
				CreatedAt:      *createdAt,
			}}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

// GetConversation loads a conversation and all of its turns in order.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	c := &Conversation{}
	err := s.db.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	turns, err := s.GetTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Turns = turns
	return c, nil
}

// GetTurns returns a conversation's turns ordered by position.
func (s *Store) GetTurns(ctx context.Context, conversationID uuid.UUID) ([]*Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, content, from_user, created_at
		FROM turns WHERE conversation_id = $1
		ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	defer rows.Close()

	var out []*Turn
	for rows.Next() {
		t := &Turn{}
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Text, &t.FromUser, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return out, nil
}

// AppendTurns appends turns to a conversation inside one transaction,
// assigning dense positions after the current maximum and bumping updated_at.
func (s *Store) AppendTurns(ctx context.Context, conversationID uuid.UUID, turns ...*Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	// Row lock so concurrent appends to the same conversation serialize.
	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT true FROM conversations WHERE id = $1 FOR UPDATE`, conversationID).
		Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking conversation: %w", err)
	}

	var maxPos int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM turns WHERE conversation_id = $1`,
		conversationID).Scan(&maxPos)
	if err != nil {
		return fmt.Errorf("reading turn position: %w", err)
	}

	var last time.Time
	for i, t := range turns {
		_, err = tx.Exec(ctx, `
			INSERT INTO turns (id, conversation_id, content, from_user, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, conversationID, t.Text, t.FromUser, maxPos+i+1, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting turn: %w", err)
		}
		last = t.CreatedAt
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		conversationID, last)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// ClearTurns removes all turns from a conversation, keeping the row and
// bumping its updated_at.
func (s *Store) ClearTurns(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	_, err = tx.Exec(ctx, `DELETE FROM turns WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("clearing turns: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = $2 WHERE id = $1`, conversationID, at)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}
