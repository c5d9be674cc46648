package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
)

// FileSystemStore stores objects as files in a directory structure:
//
//	<root>/
//	  data/
//	    <id>          (object bytes)
//	  meta/
//	    <id>.json     (remote.Object metadata)
type FileSystemStore struct {
	root      string
	dataDir   string
	metaDir   string
	publicURL string
	maxSize   int64
	ids       remote.IDGenerator
	clock     remote.Clock
}

var (
	_ remote.ObjectStore  = (*FileSystemStore)(nil)
	_ remote.ObjectReader = (*FileSystemStore)(nil)
)

// NewFileSystemStore creates the directory structure under root when missing.
func NewFileSystemStore(root, publicURL string, maxSize int64, ids remote.IDGenerator, clock remote.Clock) (*FileSystemStore, error) {
	if root == "" {
		return nil, errors.New("filesystem object store requires a root directory")
	}
	if ids == nil {
		ids = remote.UUIDGenerator{}
	}
	if clock == nil {
		clock = remote.RealClock{}
	}

	dataDir := filepath.Join(root, "data")
	metaDir := filepath.Join(root, "meta")
	for _, dir := range []string{dataDir, metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create object directory %s: %w", dir, err)
		}
	}

	return &FileSystemStore{
		root:      root,
		dataDir:   dataDir,
		metaDir:   metaDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
		ids:       ids,
		clock:     clock,
	}, nil
}

func (s *FileSystemStore) UploadObject(_ context.Context, upload remote.ObjectUpload) (remote.Object, error) {
	if err := checkUpload(upload, s.maxSize); err != nil {
		return remote.Object{}, err
	}

	obj := remote.Object{
		ID:          s.ids.New(),
		Name:        upload.Name,
		ContentType: contentType(upload),
		Size:        int64(len(upload.Data)),
		CreatedAt:   s.clock.Now(),
	}

	if err := writeAtomic(s.dataPath(obj.ID), bytes.NewReader(upload.Data), obj.Size); err != nil {
		return remote.Object{}, fmt.Errorf("%w: %w", remote.ErrUpload, err)
	}
	meta, err := json.Marshal(obj)
	if err != nil {
		_ = os.Remove(s.dataPath(obj.ID))
		return remote.Object{}, fmt.Errorf("%w: encode metadata: %w", remote.ErrUpload, err)
	}
	if err := writeAtomic(s.metaPath(obj.ID), bytes.NewReader(meta), int64(len(meta))); err != nil {
		_ = os.Remove(s.dataPath(obj.ID))
		return remote.Object{}, fmt.Errorf("%w: %w", remote.ErrUpload, err)
	}

	logger.WithComponent("fs-objectstore").Debugf("stored object %s (%d bytes)", obj.ID, obj.Size)
	return obj, nil
}

func (s *FileSystemStore) DeleteObject(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.dataPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
		}
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		logger.WithComponent("fs-objectstore").Warnf("object %s deleted but metadata remains: %v", id, err)
	}
	return nil
}

func (s *FileSystemStore) GetObjectPreviewURL(_ context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if _, err := os.Stat(s.dataPath(id)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
		}
		return "", fmt.Errorf("stat object %s: %w", id, err)
	}
	return previewURL(s.publicURL, id), nil
}

func (s *FileSystemStore) OpenObject(_ context.Context, id string) (io.ReadCloser, remote.Object, error) {
	if err := validateID(id); err != nil {
		return nil, remote.Object{}, err
	}

	var obj remote.Object
	meta, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, remote.Object{}, fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
		}
		return nil, remote.Object{}, fmt.Errorf("read metadata %s: %w", id, err)
	}
	if err := json.Unmarshal(meta, &obj); err != nil {
		return nil, remote.Object{}, fmt.Errorf("decode metadata %s: %w", id, err)
	}

	f, err := os.Open(s.dataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, remote.Object{}, fmt.Errorf("object %s: %w", id, remote.ErrNotFound)
		}
		return nil, remote.Object{}, fmt.Errorf("open object %s: %w", id, err)
	}
	return f, obj, nil
}

func (s *FileSystemStore) dataPath(id string) string { return filepath.Join(s.dataDir, id) }
func (s *FileSystemStore) metaPath(id string) string { return filepath.Join(s.metaDir, id+".json") }

// writeAtomic writes r to destPath through a temp file in the same directory and a rename.
func writeAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
