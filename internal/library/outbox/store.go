// Copyright (c) 2026 MangaTrack. All rights reserved.

package outbox

import "sync"

// Store persists the action backlog across restarts.
type Store interface {
	// Load returns the persisted backlog, empty when nothing was saved yet.
	Load() ([]Action, error)

	// Save replaces the persisted backlog.
	Save(actions []Action) error
}

// MemoryStore keeps the backlog in process memory. Tests use it.
type MemoryStore struct {
	mu      sync.Mutex
	actions []Action
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (store *MemoryStore) Load() ([]Action, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	actions := make([]Action, len(store.actions))
	copy(actions, store.actions)
	return actions, nil
}

func (store *MemoryStore) Save(actions []Action) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.actions = make([]Action, len(actions))
	copy(store.actions, actions)
	return nil
}
