package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
)

// dataFile is the persisted layout of a JSONFileStore.
type dataFile struct {
	Metadata    fileMetadata                 `json:"metadata"`
	Collections map[string][]remote.Document `json:"collections" validate:"dive,dive"`
}

type fileMetadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// JSONFileStore is a DocumentStore kept in memory and written through to a single
// JSON file after every mutation. External edits of the file are picked up by
// StartWatcher.
type JSONFileStore struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate
	mem       *MemoryStore
	clock     remote.Clock

	mu         sync.Mutex
	lastUpdate int64

	hooksMu  sync.Mutex
	onReload []func()
}

var _ remote.DocumentStore = (*JSONFileStore)(nil)

// NewJSONFileStore opens the data file at path, creating an empty one when missing.
func NewJSONFileStore(path string, clock remote.Clock) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}
	if clock == nil {
		clock = remote.RealClock{}
	}

	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	s := &JSONFileStore{
		path:      path,
		dir:       dir,
		base:      filepath.Base(path),
		validator: validator.New(),
		mem:       NewMemoryStore(clock),
		clock:     clock,
	}

	doc, err := s.Load()
	switch {
	case err == nil:
		if err := s.mem.Replace(doc.Collections); err != nil {
			return nil, fmt.Errorf("load data file: %w", err)
		}
		s.lastUpdate = doc.Metadata.LastUpdate
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if err := s.save(&dataFile{Collections: map[string][]remote.Document{}}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s, nil
}

// Load reads, parses and validates the data file.
func (s *JSONFileStore) Load() (*dataFile, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()

	var doc dataFile
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	if doc.Collections == nil {
		doc.Collections = map[string][]remote.Document{}
	}
	if err := s.validator.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate data file: %w", err)
	}
	return &doc, nil
}

// save writes the document atomically (temp file + rename).
func (s *JSONFileStore) save(doc *dataFile) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, s.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// mutate runs op against the in-memory copy and persists the result.
// A failed write rolls the memory copy back.
func (s *JSONFileStore) mutate(op func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.mem.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrPersistence, err)
	}
	if err := op(); err != nil {
		return err
	}

	next, err := s.mem.Snapshot()
	if err != nil {
		return fmt.Errorf("%w: %w", remote.ErrPersistence, err)
	}
	for name := range next {
		docs := next[name]
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	ts := s.clock.Now().UnixMilli()
	if ts <= s.lastUpdate {
		ts = s.lastUpdate + 1
	}
	if err := s.save(&dataFile{Metadata: fileMetadata{LastUpdate: ts}, Collections: next}); err != nil {
		if rbErr := s.mem.Replace(prev); rbErr != nil {
			logger.WithComponent("json-docstore").Errorf("rollback after failed save: %v", rbErr)
		}
		return fmt.Errorf("%w: %w", remote.ErrPersistence, err)
	}
	s.lastUpdate = ts
	return nil
}

func (s *JSONFileStore) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	var doc remote.Document
	err := s.mutate(func() error {
		var err error
		doc, err = s.mem.CreateDocument(ctx, collection, id, fields)
		return err
	})
	return doc, err
}

func (s *JSONFileStore) GetDocument(ctx context.Context, collection, id string) (remote.Document, error) {
	return s.mem.GetDocument(ctx, collection, id)
}

func (s *JSONFileStore) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	var doc remote.Document
	err := s.mutate(func() error {
		var err error
		doc, err = s.mem.UpdateDocument(ctx, collection, id, fields)
		return err
	})
	return doc, err
}

func (s *JSONFileStore) DeleteDocument(ctx context.Context, collection, id string) error {
	return s.mutate(func() error {
		return s.mem.DeleteDocument(ctx, collection, id)
	})
}

func (s *JSONFileStore) ListDocuments(ctx context.Context, collection string, q remote.Query) (remote.Page, error) {
	return s.mem.ListDocuments(ctx, collection, q)
}

// OnReload registers fn to run after the store reloaded a newer file written by
// someone else.
func (s *JSONFileStore) OnReload(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// StartWatcher watches the parent directory of the data file (so temp+rename
// replaces are observed) and reloads after a 200ms debounce. Cancel ctx to stop.
func (s *JSONFileStore) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
			}
			debounce = time.AfterFunc(200*time.Millisecond, s.reloadFromDisk)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("json-docstore").Warnf("watcher error: %v", err)
			}
		}
	}()
	return nil
}

// reloadFromDisk replaces the memory copy when the file is newer than the last
// write this store made, then runs the reload hooks.
func (s *JSONFileStore) reloadFromDisk() {
	doc, err := s.Load()
	if err != nil {
		logger.WithComponent("json-docstore").Warnf("watch reload failed: %v", err)
		return
	}

	s.mu.Lock()
	if doc.Metadata.LastUpdate <= s.lastUpdate {
		s.mu.Unlock()
		logger.WithComponent("json-docstore").Tracef("disk version %d is not newer than %d, skipping reload", doc.Metadata.LastUpdate, s.lastUpdate)
		return
	}
	if err := s.mem.Replace(doc.Collections); err != nil {
		s.mu.Unlock()
		logger.WithComponent("json-docstore").Errorf("reload error: %v", err)
		return
	}
	s.lastUpdate = doc.Metadata.LastUpdate
	s.mu.Unlock()

	logger.WithComponent("json-docstore").Info("documents reloaded from newer disk version")

	s.hooksMu.Lock()
	hooks := append([]func(){}, s.onReload...)
	s.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
