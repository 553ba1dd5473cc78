// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: Genkit, the
// database pool, the conversation store, the tool registry, and the session
// orchestrator. Setup builds it; Close releases it.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Maaaxiii/toolchat/internal/backend"
	"github.com/Maaaxiii/toolchat/internal/chat"
	"github.com/Maaaxiii/toolchat/internal/config"
	"github.com/Maaaxiii/toolchat/internal/log"
	"github.com/Maaaxiii/toolchat/internal/session"
	"github.com/Maaaxiii/toolchat/internal/store"
	"github.com/Maaaxiii/toolchat/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit      *genkit.Genkit
	DBPool      *pgxpool.Pool
	Store       *store.Store
	Registry    *tools.Registry
	MemoryStore *tools.MemoryStore
	Backend     *backend.Genkit
	Sessions    *session.Orchestrator

	dbCleanup func()
}

// CreateManager builds a conversation manager wired to the app's store and
// session orchestrator. onPartial, if non-nil, receives streaming reply
// snapshots.
func (a *App) CreateManager(onPartial backend.PartialFunc) (*chat.Manager, error) {
	return chat.NewManager(chat.Config{
		Store:     a.Store,
		Replier:   a.Sessions,
		Logger:    a.Logger,
		OnPartial: onPartial,
	})
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}

	return nil
}
