// Package session keeps the local session marker and runs the bootstrap
// state machine that decides whether the process is signed in.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bassista/snapgram/internal/logger"
)

// MarkerStore persists the token of the active session. Load returns "" when
// no marker exists.
type MarkerStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type marker struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"savedAt"`
}

// FileMarker stores the marker as a small JSON file, replaced atomically.
type FileMarker struct {
	path string
	mu   sync.Mutex
}

func NewFileMarker(path string) (*FileMarker, error) {
	if path == "" {
		return nil, errors.New("session marker path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create marker dir: %w", err)
	}
	return &FileMarker{path: path}, nil
}

func (f *FileMarker) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session marker: %w", err)
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		logger.WithComponent("session").Warnf("ignoring corrupt session marker %s: %v", f.path, err)
		return "", nil
	}
	return m.Token, nil
}

func (f *FileMarker) Save(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(marker{Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session marker: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp marker: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp marker: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp marker: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace session marker: %w", err)
	}
	return nil
}

func (f *FileMarker) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session marker: %w", err)
	}
	return nil
}

// MemoryMarker keeps the marker in memory.
type MemoryMarker struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryMarker) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryMarker) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryMarker) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
