// Copyright (c) 2026 MangaTrack. All rights reserved.

package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists the backlog as a JSON file in the device's data
// directory. Writes go through a temp file and rename so a crash cannot
// leave a half-written backlog behind.
type FileStore struct {
	path string
}

// NewFileStore stores the backlog at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (store *FileStore) Load() ([]Action, error) {
	data, err := os.ReadFile(store.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outbox: read backlog file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("outbox: decode backlog file: %w", err)
	}
	return actions, nil
}

func (store *FileStore) Save(actions []Action) error {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("outbox: encode backlog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(store.path), 0o755); err != nil {
		return fmt.Errorf("outbox: create backlog dir: %w", err)
	}
	tmp := store.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("outbox: write backlog file: %w", err)
	}
	if err := os.Rename(tmp, store.path); err != nil {
		return fmt.Errorf("outbox: replace backlog file: %w", err)
	}
	return nil
}
