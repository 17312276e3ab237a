package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/finsync/engine/internal/models"
)

// State is the single document persisted per client installation.
type State struct {
	Current    *Current                              `json:"current,omitempty"`
	LastUserID string                                `json:"lastUserId,omitempty"`
	Users      map[string]map[string]json.RawMessage `json:"users"`
}

type Current struct {
	User         *models.User `json:"user"`
	SessionID    string       `json:"sessionId"`
	SessionToken string       `json:"sessionToken"`
}

func newState() *State {
	return &State{Users: map[string]map[string]json.RawMessage{}}
}

// Store loads and saves the state document. Load on an empty store returns a fresh State.
type Store interface {
	Load() (*State, error)
	Save(st *State) error
}

// FileStore keeps the state as JSON at Path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (*State, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state: %w", err)
	}
	st := newState()
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if st.Users == nil {
		st.Users = map[string]map[string]json.RawMessage{}
	}
	return st, nil
}

// Save replaces the file atomically; readers never see a partial document.
func (f *FileStore) Save(st *State) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}

// MemoryStore keeps a deep copy of the last saved state.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := newState()
	if m.raw == nil {
		return st, nil
	}
	if err := json.Unmarshal(m.raw, st); err != nil {
		return nil, err
	}
	if st.Users == nil {
		st.Users = map[string]map[string]json.RawMessage{}
	}
	return st, nil
}

func (m *MemoryStore) Save(st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.raw = raw
	m.mu.Unlock()
	return nil
}
