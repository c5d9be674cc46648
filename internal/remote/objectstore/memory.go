package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bassista/snapgram/internal/remote"
)

// MemoryStore keeps objects in memory and serves them through the local HTTP surface.
// Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]memoryObject
	publicURL string
	maxSize   int64
	ids       remote.IDGenerator
	clock     remote.Clock
}

type memoryObject struct {
	meta remote.Object
	data []byte
}

var (
	_ remote.ObjectStore  = (*MemoryStore)(nil)
	_ remote.ObjectReader = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store. maxSize <= 0 disables the size limit.
func NewMemoryStore(publicURL string, maxSize int64, ids remote.IDGenerator, clock remote.Clock) *MemoryStore {
	if ids == nil {
		ids = remote.UUIDGenerator{}
	}
	if clock == nil {
		clock = remote.RealClock{}
	}
	return &MemoryStore{
		objects:   make(map[string]memoryObject),
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
		ids:       ids,
		clock:     clock,
	}
}

func (m *MemoryStore) UploadObject(_ context.Context, upload remote.ObjectUpload) (remote.Object, error) {
	if err := checkUpload(upload, m.maxSize); err != nil {
		return remote.Object{}, err
	}

	obj := remote.Object{
		ID:          m.ids.New(),
		Name:        upload.Name,
		ContentType: contentType(upload),
		Size:        int64(len(upload.Data)),
		CreatedAt:   m.clock.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.ID] = memoryObject{meta: obj, data: bytes.Clone(upload.Data)}
	return obj, nil
}

func (m *MemoryStore) DeleteObject(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		return fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
	}
	delete(m.objects, id)
	return nil
}

func (m *MemoryStore) GetObjectPreviewURL(_ context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[id]; !ok {
		return "", fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
	}
	return previewURL(m.publicURL, id), nil
}

func (m *MemoryStore) OpenObject(_ context.Context, id string) (io.ReadCloser, remote.Object, error) {
	if err := validateID(id); err != nil {
		return nil, remote.Object{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, remote.Object{}, fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
