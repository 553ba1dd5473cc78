//go:build integration
// +build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Maaaxiii/toolchat/internal/store"
	"github.com/Maaaxiii/toolchat/internal/testutil"
)

func newConversation(title string, at time.Time) *store.Conversation {
	return &store.Conversation{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestStore_ConversationLifecycle(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	conv := newConversation("First chat", at)
	require.NoError(t, s.CreateConversation(ctx, conv))

	loaded, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, loaded.ID)
	require.Equal(t, "First chat", loaded.Title)
	require.Empty(t, loaded.Turns)

	require.NoError(t, s.SaveConversation(ctx, conv.ID, "Renamed", at.Add(time.Minute)))
	loaded, err = s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", loaded.Title)

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.GetConversation(ctx, conv.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_TurnRoundTrip(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	conv := newConversation("Round trip", at)
	require.NoError(t, s.CreateConversation(ctx, conv))

	user := store.NewTurn(conv.ID, "Hello", true, at)
	require.NoError(t, s.AppendTurns(ctx, conv.ID, user))

	assistant := store.NewTurn(conv.ID, "Hi there", false, at.Add(time.Second))
	require.NoError(t, s.AppendTurns(ctx, conv.ID, assistant))

	loaded, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 2)

	// The reloaded conversation preserves content, authorship, and order.
	require.Equal(t, "Hello", loaded.Turns[0].Text)
	require.True(t, loaded.Turns[0].FromUser)
	require.Equal(t, "Hi there", loaded.Turns[1].Text)
	require.False(t, loaded.Turns[1].FromUser)

	// Appending bumps updated_at to the latest turn time.
	require.Equal(t, assistant.CreatedAt.Unix(), loaded.UpdatedAt.Unix())
}

func TestStore_AppendToMissingConversation(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)

	turn := store.NewTurn(uuid.New(), "orphan", true, time.Now())
	err := s.AppendTurns(ctx, turn.ConversationID, turn)
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestStore_ListOrderedByUpdate(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := newConversation("older", base.Add(-time.Hour))
	newer := newConversation("newer", base)
	require.NoError(t, s.CreateConversation(ctx, older))
	require.NoError(t, s.CreateConversation(ctx, newer))

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, "newer", convs[0].Title)
	require.Equal(t, "older", convs[1].Title)

	// Touching the older conversation moves it to the front.
	turn := store.NewTurn(older.ID, "ping", true, base.Add(time.Minute))
	require.NoError(t, s.AppendTurns(ctx, older.ID, turn))

	convs, err = s.ListConversations(ctx)
	require.NoError(t, err)
	require.Equal(t, "older", convs[0].Title)
	require.Equal(t, "ping", convs[0].Preview())
	require.Equal(t, "No messages yet", convs[1].Preview())
}

func TestStore_DeleteCascadesTurns(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)
	at := time.Now()

	conv := newConversation("doomed", at)
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NoError(t, s.AppendTurns(ctx, conv.ID, store.NewTurn(conv.ID, "bye", true, at)))

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))

	turns, err := s.GetTurns(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestStore_ClearTurns(t *testing.T) {
	tc, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := store.New(tc.Pool, nil)
	at := time.Now()

	conv := newConversation("keep me", at)
	require.NoError(t, s.CreateConversation(ctx, conv))
	require.NoError(t, s.AppendTurns(ctx, conv.ID,
		store.NewTurn(conv.ID, "one", true, at),
		store.NewTurn(conv.ID, "two", false, at)))

	clearedAt := at.Add(time.Hour)
	require.NoError(t, s.ClearTurns(ctx, conv.ID, clearedAt))

	loaded, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, loaded.Turns)
	require.WithinDuration(t, clearedAt, loaded.UpdatedAt, time.Second)

	require.ErrorIs(t, s.ClearTurns(ctx, uuid.New(), clearedAt), store.ErrNotFound)
}
