package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
)

// MemoryStore is an in-memory DocumentStore. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]remote.Document
	clock       remote.Clock
}

var _ remote.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil clock uses the real time.
func NewMemoryStore(clock remote.Clock) *MemoryStore {
	if clock == nil {
		clock = remote.RealClock{}
	}
	return &MemoryStore{collections: map[string]map[string]remote.Document{}, clock: clock}
}

func (m *MemoryStore) CreateDocument(_ context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.collections[collection]
	if docs == nil {
		docs = map[string]remote.Document{}
		m.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return remote.Document{}, fmt.Errorf("%w: document %s/%s already exists", remote.ErrPersistence, collection, id)
	}

	now := m.clock.Now()
	doc, err := remote.CloneDocument(remote.Document{
		Collection: collection,
		ID:         id,
		Fields:     mergeFields(nil, fields),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return remote.Document{}, fmt.Errorf("%w: %w", remote.ErrPersistence, err)
	}
	docs[id] = doc
	logger.WithComponent("memory-docstore").Debugf("created document %s/%s", collection, id)
	return remote.CloneDocument(doc)
}

func (m *MemoryStore) GetDocument(_ context.Context, collection, id string) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return remote.Document{}, fmt.Errorf("document %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	return remote.CloneDocument(doc)
}

func (m *MemoryStore) UpdateDocument(_ context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := validateRef(collection, id); err != nil {
		return remote.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return remote.Document{}, fmt.Errorf("update document %s/%s: %w: %w", collection, id, remote.ErrPersistence, remote.ErrNotFound)
	}
	doc.Fields = mergeFields(doc.Fields, fields)
	doc.UpdatedAt = m.clock.Now()

	cloned, err := remote.CloneDocument(doc)
	if err != nil {
		return remote.Document{}, fmt.Errorf("%w: %w", remote.ErrPersistence, err)
	}
	m.collections[collection][id] = cloned
	logger.WithComponent("memory-docstore").Debugf("updated document %s/%s", collection, id)
	return remote.CloneDocument(cloned)
}

func (m *MemoryStore) DeleteDocument(_ context.Context, collection, id string) error {
	if err := validateRef(collection, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	delete(m.collections[collection], id)
	logger.WithComponent("memory-docstore").Debugf("deleted document %s/%s", collection, id)
	return nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, collection string, q remote.Query) (remote.Page, error) {
	if collection == "" {
		return remote.Page{}, fmt.Errorf("%w: collection is required", remote.ErrInvalidArgument)
	}

	m.mu.RLock()
	docs := make([]remote.Document, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	return applyQuery(docs, q)
}

// Snapshot returns a deep copy of every collection, documents in no particular order.
func (m *MemoryStore) Snapshot() (map[string][]remote.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]remote.Document, len(m.collections))
	for name, docs := range m.collections {
		list := make([]remote.Document, 0, len(docs))
		for _, doc := range docs {
			cloned, err := remote.CloneDocument(doc)
			if err != nil {
				return nil, err
			}
			list = append(list, cloned)
		}
		out[name] = list
	}
	return out, nil
}

// Replace swaps the whole content of the store.
func (m *MemoryStore) Replace(collections map[string][]remote.Document) error {
	next := make(map[string]map[string]remote.Document, len(collections))
	for name, docs := range collections {
		byID := make(map[string]remote.Document, len(docs))
		for _, doc := range docs {
			cloned, err := remote.CloneDocument(doc)
			if err != nil {
				return err
			}
			cloned.Collection = name
			byID[cloned.ID] = cloned
		}
		next[name] = byID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = next
	return nil
}
