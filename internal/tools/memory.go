package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Maaaxiii/toolchat/internal/log"
)

// MemoryName is the unique identifier of the memory capability.
const MemoryName = "memory"

const memoryDescription = "Store, retrieve, or search through user memories and notes. " +
	"Can save important information for future reference."

// MemoryStore persists the memory capability's key/value state to a JSON file.
// State outlives generation sessions and process restarts.
//
// An in-process mutex serializes goroutines; a flock file lock serializes
// concurrent toolchat processes sharing the same state file.
type MemoryStore struct {
	path   string
	lock   *flock.Flock
	logger log.Logger

	mu sync.Mutex
}

// NewMemoryStore creates a store backed by the JSON file at path.
// The file is created lazily on first store.
func NewMemoryStore(path string, logger log.Logger) *MemoryStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &MemoryStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// withFileLock runs fn while holding both the process mutex and the file lock.
func (m *MemoryStore) withFileLock(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("locking memory file: %w", err)
	}
	defer func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("unlocking memory file", "error", err)
		}
	}()

	return fn()
}

// load reads the state file. A missing file is an empty store.
func (m *MemoryStore) load() (map[string]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading memory file: %w", err)
	}

	memories := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &memories); err != nil {
			return nil, fmt.Errorf("parsing memory file: %w", err)
		}
	}
	return memories, nil
}

func (m *MemoryStore) save(memories map[string]string) error {
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating memory directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(memories, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memories: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("writing memory file: %w", err)
	}
	return nil
}

// Store saves a key/value pair and returns a user-facing confirmation.
func (m *MemoryStore) Store(key, value string, at time.Time) (string, error) {
	if key == "" || value == "" {
		return "Error: Both key and value are required to store a memory.", nil
	}

	err := m.withFileLock(func() error {
		memories, err := m.load()
		if err != nil {
			return err
		}
		memories[key] = value
		return m.save(memories)
	})
	if err != nil {
		return "", err
	}

	m.logger.Debug("stored memory", "key", key)
	return fmt.Sprintf("Memory stored successfully!\nKey: %s\nValue: %s\nTimestamp: %s",
		key, value, at.Format("Monday, January 2, 2006 at 15:04:05")), nil
}

// Retrieve looks up a single memory by key.
func (m *MemoryStore) Retrieve(key string) (string, error) {
	if key == "" {
		return "Error: Key is required to retrieve a memory.", nil
	}

	var result string
	err := m.withFileLock(func() error {
		memories, err := m.load()
		if err != nil {
			return err
		}
		value, ok := memories[key]
		if !ok {
			result = fmt.Sprintf("No memory found with key: %s", key)
			return nil
		}
		result = fmt.Sprintf("Retrieved memory:\nKey: %s\nValue: %s", key, value)
		return nil
	})
	return result, err
}

// Search finds memories whose key or value contains term (case-insensitive).
func (m *MemoryStore) Search(term string) (string, error) {
	if term == "" {
		return "Error: Search term is required.", nil
	}

	var result string
	err := m.withFileLock(func() error {
		memories, err := m.load()
		if err != nil {
			return err
		}

		lower := strings.ToLower(term)
		var keys []string
		for key, value := range memories {
			if strings.Contains(strings.ToLower(key), lower) || strings.Contains(strings.ToLower(value), lower) {
				keys = append(keys, key)
			}
		}

		if len(keys) == 0 {
			result = fmt.Sprintf("No memories found containing: %s", term)
			return nil
		}

		sort.Strings(keys)
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d memories containing '%s':\n\n", len(keys), term)
		for _, key := range keys {
			fmt.Fprintf(&b, "• %s: %s\n", key, memories[key])
		}
		result = b.String()
		return nil
	})
	return result, err
}

// List returns every stored memory, sorted by key.
func (m *MemoryStore) List() (string, error) {
	var result string
	err := m.withFileLock(func() error {
		memories, err := m.load()
		if err != nil {
			return err
		}

		if len(memories) == 0 {
			result = "No memories stored."
			return nil
		}

		keys := make([]string, 0, len(memories))
		for key := range memories {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var b strings.Builder
		fmt.Fprintf(&b, "All stored memories (%d):\n\n", len(keys))
		for _, key := range keys {
			fmt.Fprintf(&b, "• %s: %s\n", key, memories[key])
		}
		result = b.String()
		return nil
	})
	return result, err
}

// Delete removes a memory by key.
func (m *MemoryStore) Delete(key string) (string, error) {
	if key == "" {
		return "Error: Key is required to delete a memory.", nil
	}

	var result string
	err := m.withFileLock(func() error {
		memories, err := m.load()
		if err != nil {
			return err
		}
		if _, ok := memories[key]; !ok {
			result = fmt.Sprintf("No memory found with key: %s", key)
			return nil
		}
		delete(memories, key)
		if err := m.save(memories); err != nil {
			return err
		}
		result = fmt.Sprintf("Memory deleted successfully: %s", key)
		return nil
	})
	return result, err
}

// NewMemoryCapability creates the memory capability over store. clock may be
// nil, in which case time.Now is used.
func NewMemoryCapability(store *MemoryStore, clock func() time.Time) *Capability {
	if clock == nil {
		clock = time.Now
	}

	return New(MemoryName, memoryDescription, func(_ context.Context, input MemoryInput) (string, error) {
		switch input.Action {
		case MemoryActionStore:
			return store.Store(input.Key, input.Value, clock())
		case MemoryActionRetrieve:
			return store.Retrieve(input.Key)
		case MemoryActionSearch:
			return store.Search(input.SearchTerm)
		case MemoryActionList:
			return store.List()
		case MemoryActionDelete:
			return store.Delete(input.Key)
		default:
			return "", fmt.Errorf("unknown memory action %q", input.Action)
		}
	})
}
