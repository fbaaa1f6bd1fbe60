// Package checkpoint persists scoring progress so an interrupted run can
// resume without re-doing committed work. A Store is an explicit object
// passed by reference to its user; there is no process-wide singleton, so
// independent pipeline instances (for example under test) never interfere.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CurrentVersion is the checkpoint schema version written by this build.
const CurrentVersion = 1

// State is the durable record of scoring progress.
type State struct {
	Version       int       `json:"version"`
	LastArticleID uint64    `json:"last_article_id"`
	ScoredTotal   int       `json:"scored_total"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store reads and writes checkpoint state at a fixed path. Commit is
// write-to-temporary-then-rename, so a crash can never leave a partially
// written checkpoint behind; the previous committed state stays intact.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a checkpoint store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the last committed state. A missing file yields a zero state,
// not an error; a checkpoint written by a newer schema version is rejected.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", s.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", s.path, err)
	}
	if state.Version > CurrentVersion {
		return nil, fmt.Errorf("checkpoint %s has unsupported version %d", s.path, state.Version)
	}
	return &state, nil
}

// Commit atomically replaces the checkpoint with the given state.
func (s *Store) Commit(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = CurrentVersion

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}
